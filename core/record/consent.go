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
	"patientledger/types/ids"
)

// ConsentStore manages consent records, one per (patient, provider) pair.
// Every mutation is authorized here, before the ledger is touched, so no
// entry point can skip the check.
type ConsentStore struct {
	*engine
}

// admit validates identifiers and authorizes actor as providerID.
func (s *ConsentStore) admit(actor auth.Identity, patientID, providerID string) error {
	if err := s.validator.ID("patientId", patientID); err != nil {
		return err
	}
	if err := s.validator.ID("providerId", providerID); err != nil {
		return err
	}
	return s.guard.Authorize(providerID, actor)
}

func (s *ConsentStore) seal(key string, grant ConsentGrant) ([]byte, error) {
	raw, err := json.Marshal(grant)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ConsentPayload(raw); err != nil {
		return nil, err
	}
	blob, err := s.codec.EncryptJSON(DocTypeConsent, codec.AAD(DocTypeConsent, key), grant)
	if err != nil {
		return nil, fmt.Errorf("seal consent payload: %w", err)
	}
	return blob, nil
}

// Create records a grant for the pair. actor must be the provider.
func (s *ConsentStore) Create(ctx context.Context, actor auth.Identity, patientID, providerID string, grant ConsentGrant) (ack Ack, err error) {
	const op = "consent.create"
	consentID := ConsentID(patientID, providerID)
	defer func() { s.record("ConsentCreate", consentID, actor, err, receiptMeta(ack.Receipt)) }()

	if err := s.admit(actor, patientID, providerID); err != nil {
		return Ack{}, err
	}
	key := ConsentKey(patientID, providerID)
	payload, err := s.seal(key, grant)
	if err != nil {
		return Ack{}, err
	}
	now := s.timestamp()
	rec := ConsentRecord{
		DocType:    DocTypeConsent,
		ConsentID:  consentID,
		PatientID:  patientID,
		ProviderID: providerID,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Ack{}, fmt.Errorf("encode consent record: %w", err)
	}
	rcpt, err := s.create(ctx, op, key, raw)
	if err != nil {
		return Ack{}, err
	}
	s.log.Info().Str("op", op).Str("key", key).Uint64("seq", rcpt.Seq).Msg("consent created")
	s.mirrorAfter(op, key, func() error { return s.mirror.UpsertConsent(ctx, consentDoc(key, rec, rcpt)) })
	return Ack{ID: consentID, Receipt: rcpt}, nil
}

// Get returns the decrypted grant. Reads need no authorization.
func (s *ConsentStore) Get(ctx context.Context, actor auth.Identity, patientID, providerID string) (c Consent, err error) {
	const op = "consent.get"
	consentID := ConsentID(patientID, providerID)
	defer func() { s.record("ConsentRead", consentID, actor, err, nil) }()

	if err := s.validator.ID("patientId", patientID); err != nil {
		return Consent{}, err
	}
	if err := s.validator.ID("providerId", providerID); err != nil {
		return Consent{}, err
	}
	key := ConsentKey(patientID, providerID)
	raw, err := s.load(ctx, op, key)
	if err != nil {
		return Consent{}, err
	}
	rec, err := s.open(op, key, patientID, providerID, raw)
	if err != nil {
		return Consent{}, err
	}
	grant, err := codec.DecryptJSON[ConsentGrant](s.codec, DocTypeConsent, codec.AAD(DocTypeConsent, key), rec.Payload)
	if err != nil {
		return Consent{}, errs.Wrap(errs.KindCorruptPayload, op, key, err)
	}
	return Consent{
		ConsentID:    rec.ConsentID,
		PatientID:    rec.PatientID,
		ProviderID:   rec.ProviderID,
		ConsentGiven: grant.ConsentGiven,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

func (s *ConsentStore) open(op, key, patientID, providerID string, raw []byte) (ConsentRecord, error) {
	rec, err := decodeEnvelope[ConsentRecord](op, key, raw)
	if err != nil {
		return ConsentRecord{}, err
	}
	if rec.DocType != DocTypeConsent {
		return ConsentRecord{}, errs.Newf(errs.KindCorruptPayload, op, key, "docType %q under consent key", rec.DocType)
	}
	id, err := ids.FromString(rec.ConsentID)
	if err != nil {
		return ConsentRecord{}, errs.Wrap(errs.KindCorruptPayload, op, key, err)
	}
	if rec.PatientID != patientID || rec.ProviderID != providerID || id != ids.ConsentKey(patientID, providerID) {
		return ConsentRecord{}, errs.Newf(errs.KindCorruptPayload, op, key, "stored identifiers do not match key")
	}
	rec.ConsentID = id.String()
	return rec, nil
}

// Update replaces the grant. Identifiers, docType and createdAt come from the
// stored record.
func (s *ConsentStore) Update(ctx context.Context, actor auth.Identity, patientID, providerID string, grant ConsentGrant) (rcpt ledger.Receipt, err error) {
	const op = "consent.update"
	consentID := ConsentID(patientID, providerID)
	defer func() { s.record("ConsentUpdate", consentID, actor, err, receiptMeta(rcpt)) }()

	if err := s.admit(actor, patientID, providerID); err != nil {
		return ledger.Receipt{}, err
	}
	key := ConsentKey(patientID, providerID)
	payload, err := s.seal(key, grant)
	if err != nil {
		return ledger.Receipt{}, err
	}
	var next ConsentRecord
	rcpt, err = s.update(ctx, op, key, func(current []byte) ([]byte, error) {
		stored, err := s.open(op, key, patientID, providerID, current)
		if err != nil {
			return nil, err
		}
		next = ConsentRecord{
			DocType:    stored.DocType,
			ConsentID:  stored.ConsentID,
			PatientID:  stored.PatientID,
			ProviderID: stored.ProviderID,
			Payload:    payload,
			CreatedAt:  stored.CreatedAt,
			UpdatedAt:  s.timestamp(),
		}
		return json.Marshal(next)
	})
	if err != nil {
		return ledger.Receipt{}, err
	}
	s.log.Info().Str("op", op).Str("key", key).Uint64("seq", rcpt.Seq).Msg("consent updated")
	s.mirrorAfter(op, key, func() error { return s.mirror.UpsertConsent(ctx, consentDoc(key, next, rcpt)) })
	return rcpt, nil
}

// Delete removes the grant. actor must be the provider.
func (s *ConsentStore) Delete(ctx context.Context, actor auth.Identity, patientID, providerID string) (rcpt ledger.Receipt, err error) {
	const op = "consent.delete"
	consentID := ConsentID(patientID, providerID)
	defer func() { s.record("ConsentDelete", consentID, actor, err, receiptMeta(rcpt)) }()

	if err := s.admit(actor, patientID, providerID); err != nil {
		return ledger.Receipt{}, err
	}
	key := ConsentKey(patientID, providerID)
	rcpt, err = s.remove(ctx, op, key)
	if err != nil {
		return ledger.Receipt{}, err
	}
	s.log.Info().Str("op", op).Str("key", key).Uint64("seq", rcpt.Seq).Msg("consent deleted")
	s.mirrorAfter(op, key, func() error { return s.mirror.DeleteConsent(ctx, consentID) })
	return rcpt, nil
}

// History lists the journal entries for the pair, including after deletion.
func (s *ConsentStore) History(ctx context.Context, patientID, providerID string) ([]ledger.Entry, error) {
	if err := s.validator.ID("patientId", patientID); err != nil {
		return nil, err
	}
	if err := s.validator.ID("providerId", providerID); err != nil {
		return nil, err
	}
	return s.history(ctx, "consent.history", ConsentKey(patientID, providerID))
}

func consentDoc(key string, rec ConsentRecord, rcpt ledger.Receipt) mirror.Document {
	return mirror.Document{
		ID:         rec.ConsentID,
		LedgerKey:  key,
		DocType:    rec.DocType,
		PatientID:  rec.PatientID,
		ProviderID: rec.ProviderID,
		Payload:    rec.Payload,
		TxID:       rcpt.TxID,
		UpdatedAt:  rec.UpdatedAt,
	}
}
