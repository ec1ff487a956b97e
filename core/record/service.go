package record

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"patientledger/core/audit"
	"patientledger/core/auth"
	"patientledger/core/codec"
	"patientledger/core/ledger"
	"patientledger/core/mirror"
	"patientledger/core/validation"
)

// Deps are the collaborators a Service is built from. Ledger and Codec are
// required; the rest default to no-ops.
type Deps struct {
	Ledger    ledger.Client
	Codec     *codec.Codec
	Validator *validation.Validator
	Guard     *auth.Guard
	Mirror    mirror.Mirror
	Audit     audit.Logger
	Log       zerolog.Logger
	Now       func() time.Time
}

// Service exposes the inbound record operations. It holds one shared ledger
// client and no other mutable state.
type Service struct {
	Patients *PatientStore
	Consents *ConsentStore

	eng *engine
}

func NewService(d Deps) (*Service, error) {
	if d.Ledger == nil {
		return nil, errors.New("record: ledger client is required")
	}
	if d.Codec == nil {
		return nil, errors.New("record: codec is required")
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Validator == nil {
		v, err := validation.New(d.Audit)
		if err != nil {
			return nil, err
		}
		d.Validator = v
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Guard == nil {
		d.Guard = auth.NewGuard(d.Audit)
		d.Guard.Now = d.Now
	}
	if d.Mirror == nil {
		d.Mirror = mirror.Nop{}
	}
	eng := &engine{
		ledger:    d.Ledger,
		codec:     d.Codec,
		validator: d.Validator,
		guard:     d.Guard,
		mirror:    d.Mirror,
		audit:     d.Audit,
		log:       d.Log.With().Str("component", "record").Logger(),
		now:       d.Now,
	}
	return &Service{
		Patients: &PatientStore{engine: eng},
		Consents: &ConsentStore{engine: eng},
		eng:      eng,
	}, nil
}

// MirrorFailures counts cache writes that failed after a ledger commit.
func (s *Service) MirrorFailures() int64 {
	return s.eng.mirrorFailures.Load()
}

func (s *Service) CreatePatient(ctx context.Context, actor auth.Identity, data PatientData) (Ack, error) {
	return s.Patients.Create(ctx, actor, data)
}

func (s *Service) GetPatient(ctx context.Context, actor auth.Identity, patientID string) (Patient, error) {
	return s.Patients.Get(ctx, actor, patientID)
}

func (s *Service) UpdatePatient(ctx context.Context, actor auth.Identity, patientID string, data PatientData) (ledger.Receipt, error) {
	return s.Patients.Update(ctx, actor, patientID, data)
}

func (s *Service) DeletePatient(ctx context.Context, actor auth.Identity, patientID string) (ledger.Receipt, error) {
	return s.Patients.Delete(ctx, actor, patientID)
}

func (s *Service) PatientHistory(ctx context.Context, patientID string) ([]ledger.Entry, error) {
	return s.Patients.History(ctx, patientID)
}

func (s *Service) CreateConsent(ctx context.Context, actor auth.Identity, patientID, providerID string, consentGiven bool) (Ack, error) {
	return s.Consents.Create(ctx, actor, patientID, providerID, ConsentGrant{ConsentGiven: consentGiven})
}

func (s *Service) GetConsent(ctx context.Context, actor auth.Identity, patientID, providerID string) (Consent, error) {
	return s.Consents.Get(ctx, actor, patientID, providerID)
}

func (s *Service) UpdateConsent(ctx context.Context, actor auth.Identity, patientID, providerID string, consentGiven bool) (ledger.Receipt, error) {
	return s.Consents.Update(ctx, actor, patientID, providerID, ConsentGrant{ConsentGiven: consentGiven})
}

func (s *Service) DeleteConsent(ctx context.Context, actor auth.Identity, patientID, providerID string) (ledger.Receipt, error) {
	return s.Consents.Delete(ctx, actor, patientID, providerID)
}

func (s *Service) ConsentHistory(ctx context.Context, patientID, providerID string) ([]ledger.Entry, error) {
	return s.Consents.History(ctx, patientID, providerID)
}
