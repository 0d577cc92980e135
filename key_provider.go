package envelope

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key size for AES-256
	KeySize = 32

	// DefaultSaltSize is the size of salts produced by GenerateSalt
	DefaultSaltSize = 32

	// MinPBKDF2Iterations is the lowest accepted PBKDF2 iteration count
	MinPBKDF2Iterations = 100000
)

// PasswordKeyProvider implements KeyProvider using password-based key derivation
type PasswordKeyProvider struct {
	password     []byte
	useArgon2id  bool
	pbkdf2Params PBKDF2Params
	argon2Params Argon2idParams
}

// NewPasswordKeyProviderPBKDF2 creates a new password-based key provider using PBKDF2
func NewPasswordKeyProviderPBKDF2(password []byte, params PBKDF2Params) *PasswordKeyProvider {
	// Set defaults
	if params.Iterations == 0 {
		params.Iterations = MinPBKDF2Iterations
	}
	if params.SaltSize == 0 {
		params.SaltSize = DefaultSaltSize
	}
	if params.KeySize == 0 {
		params.KeySize = KeySize
	}

	return &PasswordKeyProvider{
		password:     password,
		useArgon2id:  false,
		pbkdf2Params: params,
	}
}

// NewPasswordKeyProvider creates a new password-based key provider using Argon2id
func NewPasswordKeyProvider(password []byte, params Argon2idParams) *PasswordKeyProvider {
	// Set defaults
	if params.Memory == 0 {
		params.Memory = 64 * 1024 // 64 MB
	}
	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.Parallelism == 0 {
		params.Parallelism = 4
	}
	if params.SaltSize == 0 {
		params.SaltSize = DefaultSaltSize
	}
	if params.KeySize == 0 {
		params.KeySize = KeySize
	}

	return &PasswordKeyProvider{
		password:     password,
		useArgon2id:  true,
		argon2Params: params,
	}
}

// DeriveKey derives an encryption key from the password and salt
func (p *PasswordKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if len(p.password) == 0 {
		return nil, &ValidationError{Field: "password", Message: "password cannot be empty", Err: ErrEmptyInput}
	}
	if len(salt) == 0 {
		return nil, &ValidationError{Field: "salt", Message: "salt cannot be empty", Err: ErrEmptyInput}
	}

	if p.useArgon2id {
		key := argon2.IDKey(
			p.password,
			salt,
			p.argon2Params.Iterations,
			p.argon2Params.Memory,
			p.argon2Params.Parallelism,
			uint32(p.argon2Params.KeySize),
		)
		return key, nil
	}

	if p.pbkdf2Params.Iterations < MinPBKDF2Iterations {
		return nil, &ValidationError{
			Field:   "iterations",
			Value:   p.pbkdf2Params.Iterations,
			Message: fmt.Sprintf("iteration count must be at least %d", MinPBKDF2Iterations),
		}
	}

	hashFunc := p.pbkdf2Params.HashFunc.New()
	if hashFunc == nil {
		return nil, fmt.Errorf("unsupported hash function: %v", p.pbkdf2Params.HashFunc)
	}

	key := pbkdf2.Key(
		p.password,
		salt,
		p.pbkdf2Params.Iterations,
		p.pbkdf2Params.KeySize,
		hashFunc,
	)
	return key, nil
}

// GenerateSalt generates a new random salt
func (p *PasswordKeyProvider) GenerateSalt() ([]byte, error) {
	saltSize := p.pbkdf2Params.SaltSize
	if p.useArgon2id {
		saltSize = p.argon2Params.SaltSize
	}
	return GenerateSalt(saltSize)
}

// StaticKeyProvider implements KeyProvider with pre-derived key material,
// such as a key fetched from a remote key service
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a key provider that always returns key
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// DeriveKey returns the static key. The salt is ignored as the key is pre-derived.
func (s *StaticKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if err := ValidateKey(s.key, KeySize); err != nil {
		return nil, err
	}
	key := make([]byte, len(s.key))
	copy(key, s.key)
	return key, nil
}

// GenerateSalt generates a new random salt
func (s *StaticKeyProvider) GenerateSalt() ([]byte, error) {
	return GenerateSalt(DefaultSaltSize)
}

// GenerateSalt returns size cryptographically random bytes
func GenerateSalt(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("salt size must be positive")
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
