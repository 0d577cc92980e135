package envelope

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Keyring holds ciphers tried in order for decryption.
// This is useful during password rotation or migration between modes.
type Keyring struct {
	ciphers []*Cipher
	primary *Cipher // Primary cipher for new encryptions
}

// NewKeyring creates a new keyring.
// The first cipher is used for new encryptions, others for decryption fallback.
func NewKeyring(ciphers ...*Cipher) (*Keyring, error) {
	if len(ciphers) == 0 {
		return nil, fmt.Errorf("at least one cipher required")
	}
	for i, c := range ciphers {
		if c == nil {
			return nil, &ValidationError{Field: "ciphers", Value: i, Message: "cipher cannot be nil", Err: ErrNilCipher}
		}
	}

	return &Keyring{
		ciphers: ciphers,
		primary: ciphers[0],
	}, nil
}

// Primary returns the cipher used for new encryptions
func (k *Keyring) Primary() *Cipher {
	return k.primary
}

// Encrypt uses the primary cipher
func (k *Keyring) Encrypt(plaintext string) (string, error) {
	return k.primary.Encrypt(plaintext)
}

// Decrypt attempts decryption with each cipher in order and returns the
// plaintext together with the index of the cipher that opened the envelope.
func (k *Keyring) Decrypt(envelope string) (string, int, error) {
	var lastErr error
	for i, c := range k.ciphers {
		plaintext, err := c.Decrypt(envelope)
		if err != nil {
			lastErr = err
			continue
		}
		return plaintext, i, nil
	}
	return "", -1, fmt.Errorf("all ciphers failed: %w", lastErr)
}

// ReEncrypt decrypts envelope with from and encrypts the plaintext with to
func ReEncrypt(envelope string, from, to *Cipher) (string, error) {
	if from == nil || to == nil {
		return "", ErrNilCipher
	}

	plaintext, err := from.Decrypt(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt envelope: %w", err)
	}

	return to.Encrypt(plaintext)
}

// RotationOptions contains options for store rotation
type RotationOptions struct {
	// DryRun verifies every envelope opens with the current cipher without rewriting it
	DryRun bool

	// ContinueOnError keeps rotating after a failed envelope
	ContinueOnError bool
}

// RotationResult summarizes a store rotation
type RotationResult struct {
	Rotated   int         // Envelopes re-encrypted (or verified in a dry run)
	Failed    []error     // Per-envelope failures when ContinueOnError is set
	FailedIDs []uuid.UUID // Envelopes left under the old cipher
}

// Rotate re-encrypts every stored envelope under to.
//
// Every envelope is read and decrypted before anything is written, so a
// failure in that phase without ContinueOnError leaves the store untouched
// and the receiver is returned. Once any envelope has been rewritten the
// returned store is bound to to, even when an error is also returned; the
// envelopes listed in RotationResult.FailedIDs still open with the receiver.
// A dry run never writes and always returns the receiver.
func (s *Store) Rotate(to *Cipher, opts RotationOptions) (*Store, RotationResult, error) {
	var result RotationResult
	if to == nil {
		return s, result, ErrNilCipher
	}

	ids, err := s.List()
	if err != nil {
		return s, result, err
	}

	fail := func(id uuid.UUID, err error) {
		result.Failed = append(result.Failed, fmt.Errorf("failed to rotate %s: %w", id, err))
		result.FailedIDs = append(result.FailedIDs, id)
	}

	// Decrypt everything first.
	type pending struct {
		id        uuid.UUID
		plaintext []byte
	}
	var work []pending
	for _, id := range ids {
		raw, err := s.read(id)
		if err == nil {
			var plaintext []byte
			plaintext, err = s.cipher.DecryptBytes(raw)
			if err == nil {
				work = append(work, pending{id: id, plaintext: plaintext})
				continue
			}
		}

		fail(id, err)
		if !opts.ContinueOnError {
			return s, result, result.Failed[0]
		}
	}

	if opts.DryRun {
		result.Rotated = len(work)
		return s, result, result.err()
	}

	rotated := &Store{fs: s.fs, dir: s.dir, cipher: to}
	for _, p := range work {
		raw, err := to.EncryptBytes(p.plaintext)
		if err == nil {
			err = s.write(p.id, raw)
		}
		if err != nil {
			fail(p.id, err)
			if !opts.ContinueOnError {
				if result.Rotated == 0 {
					return s, result, result.Failed[len(result.Failed)-1]
				}
				return rotated, result, result.Failed[len(result.Failed)-1]
			}
			continue
		}
		result.Rotated++
	}

	if result.Rotated == 0 && len(result.Failed) > 0 {
		return s, result, result.err()
	}
	return rotated, result, result.err()
}

// err joins the collected failures, or returns nil when there are none
func (r RotationResult) err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("rotation completed with %d errors (rotated %d envelopes): %w",
		len(r.Failed), r.Rotated, errors.Join(r.Failed...))
}
