package envelope

import (
	"crypto/aes"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// BlockSize is the AES block size
	BlockSize = aes.BlockSize

	// CBCIVSize is the size of the IV that prefixes a CBC envelope
	CBCIVSize = 16

	// GCMNonceSize is the size of the nonce that prefixes a GCM envelope
	GCMNonceSize = 12

	// GCMTagSize is the size of the authentication tag following the GCM nonce
	GCMTagSize = 16

	// CBCHeaderSize is the minimum decoded size of a CBC envelope
	// 16 bytes (IV)
	CBCHeaderSize = CBCIVSize

	// GCMHeaderSize is the minimum decoded size of a GCM envelope
	// 12 bytes (nonce) + 16 bytes (tag) = 28 bytes
	GCMHeaderSize = GCMNonceSize + GCMTagSize
)

// Encoding is the text encoding applied to raw envelopes
var Encoding = base64.StdEncoding

// Envelope is a parsed view over the raw bytes of an encrypted message.
//
// Layouts:
//
//	CBC: IV[16] || PKCS7-padded ciphertext[multiple of 16]
//	GCM: nonce[12] || tag[16] || ciphertext[len(plaintext)]
//
// The slices alias the buffer passed to ParseEnvelope.
type Envelope struct {
	Mode       Mode   // Cipher mode the envelope was produced with
	IV         []byte // IV (CBC) or nonce (GCM)
	Tag        []byte // Authentication tag (GCM only)
	Ciphertext []byte // Encrypted payload
}

// HeaderSize returns the minimum decoded envelope size for mode
func HeaderSize(mode Mode) int {
	switch mode {
	case ModeCBC:
		return CBCHeaderSize
	case ModeGCM:
		return GCMHeaderSize
	default:
		return 0
	}
}

// EnvelopeSize returns the exact raw envelope size for a plaintext of n bytes
func EnvelopeSize(mode Mode, n int) int {
	switch mode {
	case ModeCBC:
		return CBCIVSize + n + pkcs7PadLen(n, BlockSize)
	case ModeGCM:
		return GCMHeaderSize + n
	default:
		return 0
	}
}

// ParseEnvelope splits a raw envelope into its parts by fixed offsets
func ParseEnvelope(mode Mode, data []byte) (*Envelope, error) {
	switch mode {
	case ModeCBC:
		if len(data) < CBCHeaderSize {
			return nil, newMalformedError(mode, len(data),
				fmt.Sprintf("envelope too short: got %d bytes, need at least %d", len(data), CBCHeaderSize))
		}
		ciphertext := data[CBCIVSize:]
		if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
			return nil, newMalformedError(mode, len(data),
				fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(ciphertext), BlockSize))
		}
		return &Envelope{
			Mode:       mode,
			IV:         data[:CBCIVSize],
			Ciphertext: ciphertext,
		}, nil
	case ModeGCM:
		if len(data) < GCMHeaderSize {
			return nil, newMalformedError(mode, len(data),
				fmt.Sprintf("envelope too short: got %d bytes, need at least %d", len(data), GCMHeaderSize))
		}
		return &Envelope{
			Mode:       mode,
			IV:         data[:GCMNonceSize],
			Tag:        data[GCMNonceSize:GCMHeaderSize],
			Ciphertext: data[GCMHeaderSize:],
		}, nil
	default:
		return nil, &ValidationError{Field: "mode", Value: mode, Message: "unsupported mode", Err: ErrInvalidMode}
	}
}

// DecodeEnvelope base64-decodes s and parses the result
func DecodeEnvelope(mode Mode, s string) (*Envelope, error) {
	data, err := Encoding.DecodeString(s)
	if err != nil {
		return nil, &CorruptionError{
			Mode:    mode,
			Message: fmt.Sprintf("invalid base64: %v", err),
			Err:     ErrMalformedEnvelope,
		}
	}
	return ParseEnvelope(mode, data)
}

// Size returns the raw size of the envelope in bytes
func (e *Envelope) Size() int {
	return len(e.IV) + len(e.Tag) + len(e.Ciphertext)
}

// Bytes returns the raw envelope layout in a newly allocated buffer
func (e *Envelope) Bytes() []byte {
	buf := make([]byte, 0, e.Size())
	buf = append(buf, e.IV...)
	buf = append(buf, e.Tag...)
	buf = append(buf, e.Ciphertext...)
	return buf
}

// String returns the base64 text form of the envelope
func (e *Envelope) String() string {
	return Encoding.EncodeToString(e.Bytes())
}

// WriteTo writes the raw envelope layout to w
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, part := range [][]byte{e.IV, e.Tag, e.Ciphertext} {
		if len(part) == 0 {
			continue
		}
		n, err := w.Write(part)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("failed to write envelope: %w", err)
		}
	}
	return total, nil
}

// Validate checks the envelope parts against the layout for its mode
func (e *Envelope) Validate() error {
	switch e.Mode {
	case ModeCBC:
		if err := ValidateNonce(e.IV, ModeCBC); err != nil {
			return err
		}
		if len(e.Tag) != 0 {
			return NewValidationError("tag", len(e.Tag), "CBC envelopes carry no tag")
		}
		if len(e.Ciphertext) == 0 || len(e.Ciphertext)%BlockSize != 0 {
			return NewValidationError("ciphertext", len(e.Ciphertext),
				fmt.Sprintf("ciphertext length must be a positive multiple of %d", BlockSize))
		}
	case ModeGCM:
		if err := ValidateNonce(e.IV, ModeGCM); err != nil {
			return err
		}
		if len(e.Tag) != GCMTagSize {
			return NewValidationError("tag", len(e.Tag), fmt.Sprintf("tag must be %d bytes", GCMTagSize))
		}
	default:
		return &ValidationError{Field: "mode", Value: e.Mode, Message: "unsupported mode", Err: ErrInvalidMode}
	}
	return nil
}
