// Package mirror keeps a secondary read cache of ledger records. The cache is
// never authoritative and only ever sees ciphertext envelopes.
package mirror

import (
	"context"
	"time"
)

// Document is the cached form of a record envelope.
type Document struct {
	ID         string    `bson:"_id" json:"id"`
	LedgerKey  string    `bson:"ledgerKey" json:"ledgerKey"`
	DocType    string    `bson:"docType" json:"docType"`
	PatientID  string    `bson:"patientId" json:"patientId"`
	ProviderID string    `bson:"providerId,omitempty" json:"providerId,omitempty"`
	Payload    []byte    `bson:"payload" json:"payload"`
	TxID       string    `bson:"txId" json:"txId"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Mirror receives a copy of every committed mutation.
type Mirror interface {
	UpsertPatient(ctx context.Context, doc Document) error
	UpsertConsent(ctx context.Context, doc Document) error
	DeletePatient(ctx context.Context, id string) error
	DeleteConsent(ctx context.Context, id string) error
}

// Nop is the mirror used when no cache is configured.
type Nop struct{}

func (Nop) UpsertPatient(context.Context, Document) error { return nil }
func (Nop) UpsertConsent(context.Context, Document) error { return nil }
func (Nop) DeletePatient(context.Context, string) error   { return nil }
func (Nop) DeleteConsent(context.Context, string) error   { return nil }
