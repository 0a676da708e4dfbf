package vault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/introhub/pkg/crypto"
)

// sealedPrefix marks values written by Seal so legacy plaintext rows still read back.
const sealedPrefix = "sealed:v1:"

// settingsSalt separates settings keys from any other use of the master secret.
var settingsSalt = []byte("introhub/api-settings/v1")

// Sealer encrypts admin-managed secrets such as OAuth client secrets before
// they are persisted.
type Sealer struct {
	key []byte
}

// Option configures a Sealer.
type Option func(*crypto.Argon2Parameters)

// WithArgon2Parameters overrides the key derivation cost.
func WithArgon2Parameters(params crypto.Argon2Parameters) Option {
	return func(p *crypto.Argon2Parameters) {
		*p = params
	}
}

// NewSealer derives an AES-256 key from masterKey with Argon2id.
func NewSealer(masterKey string, opts ...Option) (*Sealer, error) {
	masterKey = strings.TrimSpace(masterKey)
	if masterKey == "" {
		return nil, errors.New("vault: master key is required")
	}

	params := crypto.DefaultArgon2Params()
	for _, opt := range opts {
		opt(&params)
	}

	key, err := crypto.DeriveKeyArgon2id([]byte(masterKey), settingsSalt, params)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts value. Empty values stay empty so cleared secrets remain cleared.
func (s *Sealer) Seal(value string) (string, error) {
	if value == "" || IsSealed(value) {
		return value, nil
	}
	sealed, err := crypto.Encrypt([]byte(value), s.key)
	if err != nil {
		return "", fmt.Errorf("vault: seal: %w", err)
	}
	return sealedPrefix + sealed, nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	plain, err := crypto.Decrypt(strings.TrimPrefix(value, sealedPrefix), s.key)
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
