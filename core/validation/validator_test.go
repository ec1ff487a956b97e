package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patientledger/core/audit"
	"patientledger/core/errs"
)

type captured struct{ events []audit.Event }

func (c *captured) LogEvent(e audit.Event) { c.events = append(c.events, e) }

func newValidator(t *testing.T) (*Validator, *captured) {
	t.Helper()
	c := &captured{}
	v, err := New(c)
	require.NoError(t, err)
	v.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return v, c
}

func TestPatientPayload(t *testing.T) {
	v, _ := newValidator(t)
	tests := []struct {
		name    string
		payload string
		valid   bool
	}{
		{"valid", `{"name":"Alice","dateOfBirth":"1990-01-01","contactInfo":"a@x.com"}`, true},
		{"missing contact", `{"name":"Alice","dateOfBirth":"1990-01-01"}`, false},
		{"empty name", `{"name":"","dateOfBirth":"1990-01-01","contactInfo":"a@x.com"}`, false},
		{"bad date shape", `{"name":"Alice","dateOfBirth":"01/01/1990","contactInfo":"a@x.com"}`, false},
		{"extra field", `{"name":"Alice","dateOfBirth":"1990-01-01","contactInfo":"a@x.com","ssn":"1"}`, false},
		{"not json", `{`, false},
		{"long name", `{"name":"` + strings.Repeat("é", 257) + `","dateOfBirth":"1990-01-01","contactInfo":"a@x.com"}`, false},
		{"max name", `{"name":"` + strings.Repeat("é", 256) + `","dateOfBirth":"1990-01-01","contactInfo":"a@x.com"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.PatientPayload([]byte(tt.payload))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errs.IsKind(err, errs.KindInvalidArgument), "got %v", err)
			}
		})
	}
}

func TestDateOfBirth(t *testing.T) {
	v, _ := newValidator(t)
	assert.NoError(t, v.DateOfBirth("1990-01-01"))
	assert.Error(t, v.DateOfBirth("1990-02-30"))
	assert.Error(t, v.DateOfBirth("2030-01-01"))
}

func TestConsentPayload(t *testing.T) {
	v, _ := newValidator(t)
	assert.NoError(t, v.ConsentPayload([]byte(`{"consentGiven":true}`)))
	assert.NoError(t, v.ConsentPayload([]byte(`{"consentGiven":false}`)))
	assert.Error(t, v.ConsentPayload([]byte(`{"consentGiven":"yes"}`)))
	assert.Error(t, v.ConsentPayload([]byte(`{}`)))
}

func TestID(t *testing.T) {
	v, c := newValidator(t)
	assert.NoError(t, v.ID("patientId", "P1"))
	assert.Error(t, v.ID("patientId", ""))
	assert.Error(t, v.ID("providerId", "Prov\x001"))
	assert.Error(t, v.ID("providerId", strings.Repeat("x", MaxIDLen+1)))
	require.Len(t, c.events, 3)
	assert.Equal(t, "ValidationFailure", c.events[0].EventType)
}

func TestRejectionsCarryNoPHI(t *testing.T) {
	v, c := newValidator(t)
	err := v.PatientPayload([]byte(`{"name":"Alice Secret","dateOfBirth":"nope","contactInfo":"a@x.com"}`))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Alice Secret")
	require.NotEmpty(t, c.events)
	assert.NotContains(t, c.events[0].Reason, "Alice Secret")
	assert.NotContains(t, c.events[0].Reason, "nope")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Zo\u00eb", Normalize("  Zoe\u0308\n"))
}
