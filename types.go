package envelope

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// Mode represents the block cipher mode used to build envelopes
type Mode uint8

const (
	// ModeUnknown is the zero value and is never accepted by New
	ModeUnknown Mode = iota
	// ModeCBC uses AES-256 in CBC mode with PKCS7 padding
	ModeCBC
	// ModeGCM uses AES-256 with Galois/Counter Mode
	ModeGCM
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeCBC:
		return "cbc"
	case ModeGCM:
		return "gcm"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the supported modes
func (m Mode) Valid() bool {
	return m == ModeCBC || m == ModeGCM
}

// ParseMode converts a mode name such as "cbc", "CBC" or "aes-256-gcm" to a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cbc", "aes-cbc", "aes-256-cbc":
		return ModeCBC, nil
	case "gcm", "aes-gcm", "aes-256-gcm":
		return ModeGCM, nil
	default:
		return ModeUnknown, &ValidationError{
			Field:   "mode",
			Value:   s,
			Message: fmt.Sprintf("unsupported mode %q", s),
			Err:     ErrInvalidMode,
		}
	}
}

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

// String returns the string representation of the hash function
func (h HashFunc) String() string {
	switch h {
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// New returns the hash constructor for h, or nil if h is unsupported
func (h HashFunc) New() func() hash.Hash {
	switch h {
	case SHA256:
		return sha256.New
	case SHA512:
		return sha512.New
	default:
		return nil
	}
}

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int      // Number of iterations (minimum 100,000)
	HashFunc   HashFunc // Hash function to use
	SaltSize   int      // Salt size in bytes (default 32)
	KeySize    int      // Derived key size in bytes (default 32 for AES-256)
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
	SaltSize    int    // Salt size in bytes (default 32)
	KeySize     int    // Derived key size in bytes (default 32 for AES-256)
}

// KeyProvider is an interface for providing encryption keys
type KeyProvider interface {
	// DeriveKey derives an encryption key from the given salt
	DeriveKey(salt []byte) ([]byte, error)

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}

// Config holds the optional settings applied by New
type Config struct {
	// KeyProvider overrides the default PBKDF2-SHA256 provider built from the password
	KeyProvider KeyProvider

	// PBKDF2 parameters used when KeyProvider is nil
	PBKDF2 PBKDF2Params

	// Debug enables computation of the Fingerprint diagnostic identifier
	Debug bool
}

// Option configures a Cipher at construction time
type Option func(*Config)

// WithKeyProvider derives the key with p instead of the default PBKDF2 provider
func WithKeyProvider(p KeyProvider) Option {
	return func(c *Config) {
		c.KeyProvider = p
	}
}

// WithPBKDF2 overrides the default PBKDF2 parameters
func WithPBKDF2(params PBKDF2Params) Option {
	return func(c *Config) {
		c.PBKDF2 = params
	}
}

// WithIterations raises the PBKDF2 iteration count
func WithIterations(n int) Option {
	return func(c *Config) {
		c.PBKDF2.Iterations = n
	}
}

// WithDebug enables the Fingerprint diagnostic identifier
func WithDebug() Option {
	return func(c *Config) {
		c.Debug = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.KeyProvider != nil {
		return nil
	}
	if c.PBKDF2.Iterations != 0 && c.PBKDF2.Iterations < MinPBKDF2Iterations {
		return &ValidationError{
			Field:   "iterations",
			Value:   c.PBKDF2.Iterations,
			Message: fmt.Sprintf("iteration count must be at least %d", MinPBKDF2Iterations),
		}
	}
	if c.PBKDF2.KeySize != 0 && c.PBKDF2.KeySize != KeySize {
		return &ValidationError{
			Field:   "key_size",
			Value:   c.PBKDF2.KeySize,
			Message: fmt.Sprintf("AES-256 requires a %d-byte key", KeySize),
		}
	}
	if c.PBKDF2.HashFunc.New() == nil {
		return &ValidationError{
			Field:   "hash_func",
			Value:   c.PBKDF2.HashFunc,
			Message: "unsupported hash function",
		}
	}
	return nil
}
