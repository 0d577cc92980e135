package envelope

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents an encryption or decryption failure
type EncryptionError struct {
	Operation string // "encrypt" or "decrypt"
	Mode      Mode   // Cipher mode, if applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	if e.Mode.Valid() {
		return fmt.Sprintf("%s error (%s): %s", e.Operation, e.Mode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a file system I/O error
type IOError struct {
	Operation string // "read", "write", "open", "remove", etc.
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError represents an envelope that cannot be parsed or unpadded
type CorruptionError struct {
	Mode    Mode   // Cipher mode
	Size    int    // Decoded envelope size in bytes, if known
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("corruption error (%s, %d bytes): %s", e.Mode, e.Size, e.Message)
	}
	return fmt.Sprintf("corruption error (%s): %s", e.Mode, e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents a failed integrity check
type AuthenticationError struct {
	Mode    Mode   // Cipher mode
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error (%s): %s", e.Mode, e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Envelope error taxonomy. Every error returned by Cipher wraps exactly one of
// these, so callers can use errors.Is regardless of the structured type.
var (
	ErrInvalidMode       = errors.New("invalid cipher mode")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrPadding           = errors.New("invalid padding")
	ErrAuthentication    = errors.New("authentication failed - data may be corrupted or tampered")
	ErrEncoding          = errors.New("decrypted data is not valid UTF-8")
)

// Common sentinel errors
var (
	ErrInvalidKey = errors.New("invalid encryption key")
	ErrNilConfig  = errors.New("config cannot be nil")
	ErrNilCipher  = errors.New("cipher cannot be nil")
	ErrEmptyInput = errors.New("input cannot be empty")
	ErrNotFound   = errors.New("envelope not found")
	ErrNilFS      = errors.New("filesystem cannot be nil")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation string, mode Mode, err error) error {
	return &EncryptionError{
		Operation: operation,
		Mode:      mode,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// newMalformedError reports an envelope that is too short or undecodable
func newMalformedError(mode Mode, size int, message string) error {
	return &CorruptionError{
		Mode:    mode,
		Size:    size,
		Message: message,
		Err:     ErrMalformedEnvelope,
	}
}

// newPaddingError reports malformed PKCS7 padding after CBC decryption
func newPaddingError(size int) error {
	return &CorruptionError{
		Mode:    ModeCBC,
		Size:    size,
		Message: "malformed PKCS7 padding",
		Err:     ErrPadding,
	}
}

// newAuthError reports a GCM tag mismatch
func newAuthError() error {
	return &AuthenticationError{
		Mode:    ModeGCM,
		Message: "message authentication failed",
		Err:     ErrAuthentication,
	}
}

// newEncodingError reports decrypted bytes that are not valid text
func newEncodingError(mode Mode) error {
	return &EncryptionError{
		Operation: "decrypt",
		Mode:      mode,
		Message:   "plaintext is not valid UTF-8",
		Err:       ErrEncoding,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
