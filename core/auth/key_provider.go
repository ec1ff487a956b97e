package auth

import (
	"errors"
)

// KeyProvider returns the HMAC secret for a token's key id.
type KeyProvider interface {
	SigningKey(kid string) ([]byte, error)
}

// StaticKeyProvider serves one shared secret regardless of kid.
type StaticKeyProvider struct {
	Secret []byte
}

func (p StaticKeyProvider) SigningKey(string) ([]byte, error) {
	if len(p.Secret) == 0 {
		return nil, errors.New("no signing key set")
	}
	return p.Secret, nil
}
