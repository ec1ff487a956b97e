package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"patientledger/core/errs"
)

const (
	// KeySize is the master key length (AES-256).
	KeySize = 32

	blobVersion byte = 1
	infoPrefix       = "patientledger/v1/"
)

var errMalformed = errors.New("ciphertext malformed")

// Codec encrypts record payloads with AES-256-GCM. Each docType gets its own
// HKDF-derived key; the AAD binds a ciphertext to the record it belongs to.
type Codec struct {
	master []byte

	mu    sync.Mutex
	aeads map[string]cipher.AEAD
}

// New builds a Codec from a 32-byte master key.
func New(masterKey []byte) (*Codec, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("data key must be %d bytes, got %d", KeySize, len(masterKey))
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &Codec{master: key, aeads: make(map[string]cipher.AEAD)}, nil
}

// NewFromBase64 decodes a base64 master key and builds a Codec.
func NewFromBase64(b64 string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data key: %w", err)
	}
	return New(key)
}

// AAD is the associated data for a record stored under key.
func AAD(docType, key string) []byte {
	return append(append([]byte(docType), 0), key...)
}

func (c *Codec) aead(docType string) (cipher.AEAD, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.aeads[docType]; ok {
		return a, nil
	}
	sub := make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, c.master, nil, []byte(infoPrefix+docType))
	if _, err := io.ReadFull(kdf, sub); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(sub)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	c.aeads[docType] = gcm
	return gcm, nil
}

// Seal encrypts plaintext. Output layout: version || nonce || ciphertext+tag.
func (c *Codec) Seal(docType string, aad, plaintext []byte) ([]byte, error) {
	gcm, err := c.aead(docType)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+gcm.NonceSize(), 1+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out[0] = blobVersion
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, err
	}
	return gcm.Seal(out, out[1:], plaintext, aad), nil
}

// Open authenticates and decrypts a blob produced by Seal. Any failure is
// reported as CorruptPayload and no plaintext is returned.
func (c *Codec) Open(docType string, aad, blob []byte) ([]byte, error) {
	gcm, err := c.aead(docType)
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+gcm.NonceSize()+gcm.Overhead() || blob[0] != blobVersion {
		return nil, errs.Wrap(errs.KindCorruptPayload, "codec.open", "", errMalformed)
	}
	nonce, ct := blob[1:1+gcm.NonceSize()], blob[1+gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, errs.Wrap(errs.KindCorruptPayload, "codec.open", "", err)
	}
	return pt, nil
}

// EncryptJSON marshals v and seals it.
func (c *Codec) EncryptJSON(docType string, aad []byte, v any) ([]byte, error) {
	pt, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return c.Seal(docType, aad, pt)
}

// DecryptJSON opens blob and decodes it into a fresh T. On any failure the
// zero T is returned, so partial plaintext never escapes.
func DecryptJSON[T any](c *Codec, docType string, aad, blob []byte) (T, error) {
	var zero T
	pt, err := c.Open(docType, aad, blob)
	if err != nil {
		return zero, err
	}
	dec := json.NewDecoder(bytes.NewReader(pt))
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return zero, errs.Wrap(errs.KindCorruptPayload, "codec.decode", "", err)
	}
	return v, nil
}
