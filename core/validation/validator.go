// Package validation checks and normalizes plaintext record payloads before
// they reach the codec.
package validation

import (
	"embed"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/unicode/norm"

	"patientledger/core/audit"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	// MaxIDLen bounds patient and provider identifiers.
	MaxIDLen = 128

	dateLayout = "2006-01-02"
)

// Validator holds the compiled schemas. Safe for concurrent use.
type Validator struct {
	patient *gojsonschema.Schema
	consent *gojsonschema.Schema

	AuditLogger audit.Logger
	now         func() time.Time
}

func New(logger audit.Logger) (*Validator, error) {
	patient, err := loadSchema("schemas/patient_v1.json")
	if err != nil {
		return nil, err
	}
	consent, err := loadSchema("schemas/consent_v1.json")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = audit.Nop{}
	}
	return &Validator{patient: patient, consent: consent, AuditLogger: logger, now: time.Now}, nil
}

func loadSchema(path string) (*gojsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return s, nil
}

// Normalize trims surrounding whitespace and converts s to NFC.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// PatientPayload validates a JSON-encoded PatientData document.
func (v *Validator) PatientPayload(payload []byte) error {
	return v.check(v.patient, "patient", payload)
}

// DateOfBirth checks a YYYY-MM-DD calendar date that is not in the future.
func (v *Validator) DateOfBirth(dob string) error {
	t, err := time.Parse(dateLayout, dob)
	if err != nil {
		return v.reject("date_check", "dateOfBirth is not a calendar date")
	}
	if t.After(v.now().UTC()) {
		return v.reject("date_check", "dateOfBirth is in the future")
	}
	return nil
}

// ConsentPayload validates a JSON-encoded ConsentGrant document.
func (v *Validator) ConsentPayload(payload []byte) error {
	return v.check(v.consent, "consent", payload)
}

// ID checks a patient or provider identifier.
func (v *Validator) ID(field, id string) error {
	switch {
	case id == "":
		return v.reject("id_check", field+" is empty")
	case len(id) > MaxIDLen:
		return v.reject("length_check", fmt.Sprintf("%s exceeds %d bytes", field, MaxIDLen))
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return v.reject("id_check", field+" contains control characters")
	}
	return nil
}

func (v *Validator) check(schema *gojsonschema.Schema, kind string, payload []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return v.reject("schema_check", kind+" payload is not valid JSON")
	}
	if !result.Valid() {
		var fields []string
		for _, e := range result.Errors() {
			// Field and Type only; Description may quote the value.
			fields = append(fields, e.Field()+":"+e.Type())
		}
		return v.reject("schema_check", fmt.Sprintf("%s payload failed schema validation: %s", kind, strings.Join(fields, "; ")))
	}
	return nil
}
