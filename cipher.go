package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Engine seals plaintext into raw envelopes and opens them again. Each
// implementation is bound to one mode, so callers never branch on it.
type Engine interface {
	// Seal encrypts plaintext under a fresh random IV/nonce and returns the raw envelope
	Seal(plaintext []byte) ([]byte, error)

	// Open parses and decrypts a raw envelope
	Open(envelope []byte) ([]byte, error)

	// Mode returns the mode this engine implements
	Mode() Mode

	// EnvelopeSize returns the raw envelope size for n bytes of plaintext
	EnvelopeSize(n int) int
}

// CBCEngine implements Engine using AES-256-CBC with PKCS7 padding
type CBCEngine struct {
	block cipher.Block
	rand  io.Reader
}

// NewCBCEngine creates a new AES-256-CBC engine
func NewCBCEngine(key []byte) (*CBCEngine, error) {
	block, err := newAESBlock(key)
	if err != nil {
		return nil, err
	}
	return &CBCEngine{block: block, rand: rand.Reader}, nil
}

// Seal encrypts plaintext as IV || CBC(PKCS7(plaintext))
func (e *CBCEngine) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, e.EnvelopeSize(len(plaintext)))

	iv := out[:CBCIVSize]
	if _, err := io.ReadFull(e.rand, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	body := out[CBCIVSize:]
	copy(body, plaintext)
	fillPadding(body[len(plaintext):])

	cipher.NewCBCEncrypter(e.block, iv).CryptBlocks(body, body)
	return out, nil
}

// Open decrypts a CBC envelope and strips its padding
func (e *CBCEngine) Open(envelope []byte) ([]byte, error) {
	env, err := ParseEnvelope(ModeCBC, envelope)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(env.Ciphertext))
	cipher.NewCBCDecrypter(e.block, env.IV).CryptBlocks(plaintext, env.Ciphertext)

	return pkcs7Unpad(plaintext, BlockSize)
}

// Mode returns ModeCBC
func (e *CBCEngine) Mode() Mode {
	return ModeCBC
}

// EnvelopeSize returns the IV plus the padded ciphertext size
func (e *CBCEngine) EnvelopeSize(n int) int {
	return EnvelopeSize(ModeCBC, n)
}

// GCMEngine implements Engine using AES-256-GCM
type GCMEngine struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewGCMEngine creates a new AES-256-GCM engine
func NewGCMEngine(key []byte) (*GCMEngine, error) {
	block, err := newAESBlock(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &GCMEngine{aead: aead, rand: rand.Reader}, nil
}

// Seal encrypts plaintext as nonce || tag || ciphertext.
// The AEAD appends the tag after the ciphertext; it is moved in front of the
// ciphertext within a single allocation.
func (e *GCMEngine) Seal(plaintext []byte) ([]byte, error) {
	n := len(plaintext)
	out := make([]byte, GCMHeaderSize+n+GCMTagSize)

	nonce := out[:GCMNonceSize]
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(out[GCMHeaderSize:GCMHeaderSize], nonce, plaintext, nil)
	copy(out[GCMNonceSize:GCMHeaderSize], sealed[n:])

	return out[:GCMHeaderSize+n], nil
}

// Open verifies and decrypts a GCM envelope
func (e *GCMEngine) Open(envelope []byte) ([]byte, error) {
	env, err := ParseEnvelope(ModeGCM, envelope)
	if err != nil {
		return nil, err
	}

	// Reassemble ciphertext || tag, the order the AEAD expects, and open in place.
	buf := make([]byte, len(env.Ciphertext)+GCMTagSize)
	copy(buf, env.Ciphertext)
	copy(buf[len(env.Ciphertext):], env.Tag)

	plaintext, err := e.aead.Open(buf[:0], env.IV, buf, nil)
	if err != nil {
		return nil, newAuthError()
	}

	return plaintext, nil
}

// Mode returns ModeGCM
func (e *GCMEngine) Mode() Mode {
	return ModeGCM
}

// EnvelopeSize returns the nonce, tag and ciphertext size
func (e *GCMEngine) EnvelopeSize(n int) int {
	return EnvelopeSize(ModeGCM, n)
}

// NewEngine creates the engine for mode
func NewEngine(mode Mode, key []byte) (Engine, error) {
	switch mode {
	case ModeCBC:
		return NewCBCEngine(key)
	case ModeGCM:
		return NewGCMEngine(key)
	default:
		return nil, ValidateMode(mode)
	}
}

func newAESBlock(key []byte) (cipher.Block, error) {
	if err := ValidateKey(key, KeySize); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return block, nil
}
