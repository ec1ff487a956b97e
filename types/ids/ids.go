package ids

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// ID is a 32-byte array.
type ID [32]byte

// consentDomain separates consent keys from any other sha3 use.
const consentDomain = "patientledger/consent/v1"

// FromString parses a 64-char hex string into an ID
func FromString(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String converts an ID back to a hex string
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// NewPatientID returns a fresh, time-ordered patient identifier.
func NewPatientID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ConsentKey derives the consent identifier for a (patient, provider) pair.
// Each component is length-prefixed so ("ab","c") and ("a","bc") never collide.
func ConsentKey(patientID, providerID string) ID {
	h := sha3.New256()
	writeField(h, consentDomain)
	writeField(h, patientID)
	writeField(h, providerID)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

func writeField(w interface{ Write([]byte) (int, error) }, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = w.Write(n[:])
	_, _ = w.Write([]byte(s))
}
