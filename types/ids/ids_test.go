package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentKeyStable(t *testing.T) {
	a := ConsentKey("P1", "Prov1")
	b := ConsentKey("P1", "Prov1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, ID{}, a)
}

func TestConsentKeyNoConcatenationCollision(t *testing.T) {
	assert.NotEqual(t, ConsentKey("ab", "c"), ConsentKey("a", "bc"))
	assert.NotEqual(t, ConsentKey("P1", "Prov1"), ConsentKey("Prov1", "P1"))
}

func TestFromStringRoundTrip(t *testing.T) {
	id := ConsentKey("P1", "Prov1")
	assert.Equal(t, "0a206a286fabf31311116d1477afac4d3bf99fb64e197dc035963369f4d3ec22", id.String())
	parsed, err := FromString(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = FromString("abcd")
	assert.Error(t, err)
	_, err = FromString("zz")
	assert.Error(t, err)
}

func TestNewPatientIDIsUUIDv7(t *testing.T) {
	id := NewPatientID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, id, NewPatientID())
}
