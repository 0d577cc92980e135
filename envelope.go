package envelope

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

// fingerprintNamespace scopes the UUIDv5 debug identifiers produced by Fingerprint
var fingerprintNamespace = uuid.MustParse("6f1c2a3e-9b7d-5e40-8c21-4d3f0a9e7b15")

// Cipher encrypts and decrypts messages as self-contained envelopes under a
// key derived once at construction. A Cipher is immutable and safe for
// concurrent use.
type Cipher struct {
	mode        Mode
	engine      Engine
	fingerprint uuid.UUID
}

// New derives a key from password and salt and returns a Cipher for mode.
// Without options the key is derived with PBKDF2-HMAC-SHA256 at
// MinPBKDF2Iterations iterations.
func New(password string, salt []byte, mode Mode, opts ...Option) (*Cipher, error) {
	if err := ValidateMode(mode); err != nil {
		return nil, err
	}

	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := cfg.KeyProvider
	if provider == nil {
		provider = NewPasswordKeyProviderPBKDF2([]byte(password), cfg.PBKDF2)
	}

	key, err := provider.DeriveKey(salt)
	if err != nil {
		return nil, err
	}

	c, err := NewWithKey(key, mode)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		c.fingerprint = uuid.NewSHA1(fingerprintNamespace, key)
	}
	return c, nil
}

// NewWithKey returns a Cipher for mode using raw 32-byte key material
func NewWithKey(key []byte, mode Mode) (*Cipher, error) {
	engine, err := NewEngine(mode, key)
	if err != nil {
		return nil, err
	}
	return &Cipher{mode: mode, engine: engine}, nil
}

// Mode returns the mode the cipher was constructed with
func (c *Cipher) Mode() Mode {
	return c.mode
}

// Overhead returns the raw (pre-base64) envelope size for n bytes of plaintext
func (c *Cipher) Overhead(n int) int {
	return c.engine.EnvelopeSize(n)
}

// Fingerprint returns a diagnostic identifier for the derived key, or the nil
// UUID unless the cipher was built WithDebug. It has no effect on envelopes.
func (c *Cipher) Fingerprint() uuid.UUID {
	return c.fingerprint
}

// Encrypt encrypts plaintext and returns the base64-encoded envelope
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	raw, err := c.EncryptBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return Encoding.EncodeToString(raw), nil
}

// EncryptBytes encrypts plaintext and returns the raw envelope
func (c *Cipher) EncryptBytes(plaintext []byte) ([]byte, error) {
	raw, err := c.engine.Seal(plaintext)
	if err != nil {
		return nil, NewEncryptionError("encrypt", c.mode, err)
	}
	return raw, nil
}

// Decrypt decodes a base64 envelope and returns the plaintext.
// Decrypted bytes that are not valid UTF-8 fail with ErrEncoding.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	raw, err := Encoding.DecodeString(envelope)
	if err != nil {
		return "", newMalformedError(c.mode, 0, "invalid base64: "+err.Error())
	}

	plaintext, err := c.DecryptBytes(raw)
	if err != nil {
		return "", err
	}
	return c.text(plaintext)
}

// text converts decrypted bytes to a string, rejecting invalid UTF-8
func (c *Cipher) text(plaintext []byte) (string, error) {
	if !utf8.Valid(plaintext) {
		return "", newEncodingError(c.mode)
	}
	return string(plaintext), nil
}

// DecryptBytes decrypts a raw envelope
func (c *Cipher) DecryptBytes(envelope []byte) ([]byte, error) {
	return c.engine.Open(envelope)
}
