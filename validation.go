package envelope

import (
	"fmt"
)

// Input validation helpers

// ValidateNonce checks if an IV or nonce has the correct size for a mode
func ValidateNonce(nonce []byte, mode Mode) error {
	if nonce == nil {
		return &ValidationError{
			Field:   "nonce",
			Message: "nonce cannot be nil",
		}
	}

	var expectedSize int
	switch mode {
	case ModeCBC:
		expectedSize = CBCIVSize
	case ModeGCM:
		expectedSize = GCMNonceSize
	default:
		return &ValidationError{
			Field:   "mode",
			Value:   mode,
			Message: "unsupported mode for nonce validation",
			Err:     ErrInvalidMode,
		}
	}

	if len(nonce) != expectedSize {
		return &ValidationError{
			Field:   "nonce",
			Value:   len(nonce),
			Message: fmt.Sprintf("invalid nonce size: got %d bytes, expected %d bytes for %s", len(nonce), expectedSize, mode),
		}
	}

	return nil
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// ValidateMode checks that mode is one of the supported modes
func ValidateMode(mode Mode) error {
	if !mode.Valid() {
		return &ValidationError{
			Field:   "mode",
			Value:   mode,
			Message: fmt.Sprintf("unsupported mode %d", mode),
			Err:     ErrInvalidMode,
		}
	}
	return nil
}
