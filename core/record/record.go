// Package record implements the patient and consent record stores: the
// create/read/update/delete state machines over the ledger.
package record

import (
	"time"

	"patientledger/types/ids"
)

const (
	DocTypePatient = "patient"
	DocTypeConsent = "consent"

	// MaxUpdateAttempts bounds compare-and-swap retries when concurrent
	// writers race on the same record.
	MaxUpdateAttempts = 3

	patientKeyPrefix = "patient:"
	consentKeyPrefix = "consent:"
)

// PatientData is the plaintext demographic payload. It never leaves the
// process unencrypted.
type PatientData struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	ContactInfo string `json:"contactInfo"`
}

// ConsentGrant is the plaintext consent payload.
type ConsentGrant struct {
	ConsentGiven bool `json:"consentGiven"`
}

// PatientRecord is the ledger value stored under patient:<patientId>.
type PatientRecord struct {
	DocType   string    `json:"docType"`
	PatientID string    `json:"patientId"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConsentRecord is the ledger value stored under consent:<consentId>.
type ConsentRecord struct {
	DocType    string    `json:"docType"`
	ConsentID  string    `json:"consentId"`
	PatientID  string    `json:"patientId"`
	ProviderID string    `json:"providerId"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Patient is a decrypted patient record.
type Patient struct {
	PatientID string `json:"patientId"`
	PatientData
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Consent is a decrypted consent record.
type Consent struct {
	ConsentID    string    `json:"consentId"`
	PatientID    string    `json:"patientId"`
	ProviderID   string    `json:"providerId"`
	ConsentGiven bool      `json:"consentGiven"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PatientKey is the ledger key of a patient record.
func PatientKey(patientID string) string {
	return patientKeyPrefix + patientID
}

// ConsentID is the stable identifier of the (patient, provider) pair.
func ConsentID(patientID, providerID string) string {
	return ids.ConsentKey(patientID, providerID).String()
}

// ConsentKey is the ledger key of a consent record.
func ConsentKey(patientID, providerID string) string {
	return consentKeyPrefix + ConsentID(patientID, providerID)
}
