package record

import (
	"context"
	"encoding/json"
	"fmt"

	"patientledger/core/auth"
	"patientledger/core/codec"
	"patientledger/core/errs"
	"patientledger/core/ledger"
	"patientledger/core/mirror"
	"patientledger/core/validation"
	"patientledger/types/ids"
)

// PatientStore manages patient records. Patient mutations carry no actor
// check; the acting identity is only recorded in the audit trail.
type PatientStore struct {
	*engine
}

// Ack is returned by a successful create.
type Ack struct {
	ID      string         `json:"id"`
	Receipt ledger.Receipt `json:"receipt"`
}

func (s *PatientStore) prepare(op string, data PatientData) (PatientData, error) {
	data = PatientData{
		Name:        validation.Normalize(data.Name),
		DateOfBirth: validation.Normalize(data.DateOfBirth),
		ContactInfo: validation.Normalize(data.ContactInfo),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return PatientData{}, errs.Wrap(errs.KindInvalidArgument, op, "", err)
	}
	if err := s.validator.PatientPayload(raw); err != nil {
		return PatientData{}, err
	}
	if err := s.validator.DateOfBirth(data.DateOfBirth); err != nil {
		return PatientData{}, err
	}
	return data, nil
}

func (s *PatientStore) seal(key string, data PatientData) ([]byte, error) {
	blob, err := s.codec.EncryptJSON(DocTypePatient, codec.AAD(DocTypePatient, key), data)
	if err != nil {
		return nil, fmt.Errorf("seal patient payload: %w", err)
	}
	return blob, nil
}

// Create stores a new patient under a freshly generated ID.
func (s *PatientStore) Create(ctx context.Context, actor auth.Identity, data PatientData) (Ack, error) {
	return s.CreateWithID(ctx, actor, ids.NewPatientID(), data)
}

// CreateWithID stores a new patient under a caller-chosen ID. It fails with
// AlreadyExists if any record, committed by anyone, already holds the key.
func (s *PatientStore) CreateWithID(ctx context.Context, actor auth.Identity, patientID string, data PatientData) (ack Ack, err error) {
	const op = "patient.create"
	defer func() { s.record("PatientCreate", patientID, actor, err, receiptMeta(ack.Receipt)) }()

	if err := s.validator.ID("patientId", patientID); err != nil {
		return Ack{}, err
	}
	data, err = s.prepare(op, data)
	if err != nil {
		return Ack{}, err
	}
	key := PatientKey(patientID)
	payload, err := s.seal(key, data)
	if err != nil {
		return Ack{}, err
	}
	now := s.timestamp()
	rec := PatientRecord{DocType: DocTypePatient, PatientID: patientID, Payload: payload, CreatedAt: now, UpdatedAt: now}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Ack{}, fmt.Errorf("encode patient record: %w", err)
	}
	rcpt, err := s.create(ctx, op, key, raw)
	if err != nil {
		return Ack{}, err
	}
	s.log.Info().Str("op", op).Str("key", key).Uint64("seq", rcpt.Seq).Msg("patient created")
	s.mirrorAfter(op, key, func() error { return s.mirror.UpsertPatient(ctx, patientDoc(key, rec, rcpt)) })
	return Ack{ID: patientID, Receipt: rcpt}, nil
}

// Get returns the decrypted patient.
func (s *PatientStore) Get(ctx context.Context, actor auth.Identity, patientID string) (p Patient, err error) {
	const op = "patient.get"
	defer func() { s.record("PatientRead", patientID, actor, err, nil) }()

	if err := s.validator.ID("patientId", patientID); err != nil {
		return Patient{}, err
	}
	key := PatientKey(patientID)
	raw, err := s.load(ctx, op, key)
	if err != nil {
		return Patient{}, err
	}
	rec, err := s.open(op, key, patientID, raw)
	if err != nil {
		return Patient{}, err
	}
	data, err := codec.DecryptJSON[PatientData](s.codec, DocTypePatient, codec.AAD(DocTypePatient, key), rec.Payload)
	if err != nil {
		return Patient{}, errs.Wrap(errs.KindCorruptPayload, op, key, err)
	}
	return Patient{PatientID: rec.PatientID, PatientData: data, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}

// open decodes a stored envelope and checks it belongs under key.
func (s *PatientStore) open(op, key, patientID string, raw []byte) (PatientRecord, error) {
	rec, err := decodeEnvelope[PatientRecord](op, key, raw)
	if err != nil {
		return PatientRecord{}, err
	}
	if rec.DocType != DocTypePatient {
		return PatientRecord{}, errs.Newf(errs.KindCorruptPayload, op, key, "docType %q under patient key", rec.DocType)
	}
	if rec.PatientID != patientID {
		return PatientRecord{}, errs.Newf(errs.KindCorruptPayload, op, key, "stored patientId does not match key")
	}
	return rec, nil
}

// Update replaces the payload. docType, patientId and createdAt are carried
// over from the stored record.
func (s *PatientStore) Update(ctx context.Context, actor auth.Identity, patientID string, data PatientData) (rcpt ledger.Receipt, err error) {
	const op = "patient.update"
	defer func() { s.record("PatientUpdate", patientID, actor, err, receiptMeta(rcpt)) }()

	if err := s.validator.ID("patientId", patientID); err != nil {
		return ledger.Receipt{}, err
	}
	data, err = s.prepare(op, data)
	if err != nil {
		return ledger.Receipt{}, err
	}
	key := PatientKey(patientID)
	payload, err := s.seal(key, data)
	if err != nil {
		return ledger.Receipt{}, err
	}
	var next PatientRecord
	rcpt, err = s.update(ctx, op, key, func(current []byte) ([]byte, error) {
		stored, err := s.open(op, key, patientID, current)
		if err != nil {
			return nil, err
		}
		next = PatientRecord{
			DocType:   stored.DocType,
			PatientID: stored.PatientID,
			Payload:   payload,
			CreatedAt: stored.CreatedAt,
			UpdatedAt: s.timestamp(),
		}
		return json.Marshal(next)
	})
	if err != nil {
		return ledger.Receipt{}, err
	}
	s.log.Info().Str("op", op).Str("key", key).Uint64("seq", rcpt.Seq).Msg("patient updated")
	s.mirrorAfter(op, key, func() error { return s.mirror.UpsertPatient(ctx, patientDoc(key, next, rcpt)) })
	return rcpt, nil
}

// Delete removes the patient from world state. The journal keeps a delete
// entry without payload.
func (s *PatientStore) Delete(ctx context.Context, actor auth.Identity, patientID string) (rcpt ledger.Receipt, err error) {
	const op = "patient.delete"
	defer func() { s.record("PatientDelete", patientID, actor, err, receiptMeta(rcpt)) }()

	if err := s.validator.ID("patientId", patientID); err != nil {
		return ledger.Receipt{}, err
	}
	key := PatientKey(patientID)
	rcpt, err = s.remove(ctx, op, key)
	if err != nil {
		return ledger.Receipt{}, err
	}
	s.log.Info().Str("op", op).Str("key", key).Uint64("seq", rcpt.Seq).Msg("patient deleted")
	s.mirrorAfter(op, key, func() error { return s.mirror.DeletePatient(ctx, patientID) })
	return rcpt, nil
}

// History lists the journal entries for a patient, including after deletion.
func (s *PatientStore) History(ctx context.Context, patientID string) ([]ledger.Entry, error) {
	if err := s.validator.ID("patientId", patientID); err != nil {
		return nil, err
	}
	return s.history(ctx, "patient.history", PatientKey(patientID))
}

func patientDoc(key string, rec PatientRecord, rcpt ledger.Receipt) mirror.Document {
	return mirror.Document{
		ID:        rec.PatientID,
		LedgerKey: key,
		DocType:   rec.DocType,
		PatientID: rec.PatientID,
		Payload:   rec.Payload,
		TxID:      rcpt.TxID,
		UpdatedAt: rec.UpdatedAt,
	}
}
