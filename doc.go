// Package envelope provides password-based symmetric encryption of text
// messages into self-contained, base64-encoded envelopes.
//
// # Overview
//
// A Cipher derives a 256-bit key from a password and salt once, at
// construction, and then encrypts and decrypts any number of messages.
// Every envelope carries the random IV or nonce it was sealed with, so it
// can be decrypted independently by any Cipher built from the same
// password, salt and mode.
//
// # Supported Modes
//
//   - ModeCBC: AES-256-CBC with PKCS7 padding. Confidentiality only.
//   - ModeGCM: AES-256-GCM. Confidentiality and integrity; any tampering
//     is rejected with ErrAuthentication.
//
// # Basic Usage
//
//	c, err := envelope.New("my-secure-password", salt, envelope.ModeGCM)
//	if err != nil {
//	    return err
//	}
//
//	ct, err := c.Encrypt("Hello, World!")
//	if err != nil {
//	    return err
//	}
//
//	pt, err := c.Decrypt(ct)
//
// # Envelope Format
//
// Envelopes are standard base64 (RFC 4648, padded) over the raw layout:
//
//	CBC: IV (16 bytes) || ciphertext (PKCS7-padded, multiple of 16)
//	GCM: nonce (12 bytes) || tag (16 bytes) || ciphertext (len(plaintext))
//
// "Hello, World!" therefore produces a 41-byte GCM envelope, and
// "CBC secret message" a 48-byte CBC envelope.
//
// # Errors
//
// Every failure wraps one of the taxonomy sentinels, checked with errors.Is:
//
//   - ErrInvalidMode: a mode other than ModeCBC or ModeGCM
//   - ErrMalformedEnvelope: bad base64, a too-short envelope, or a CBC
//     ciphertext that is not a positive multiple of the block size
//   - ErrPadding: CBC padding is invalid (wrong key or corruption)
//   - ErrAuthentication: GCM tag verification failed
//   - ErrEncoding: the decrypted bytes are not valid UTF-8
//
// CBC offers no integrity check. Decrypting with the wrong key usually fails
// with ErrPadding, but garbage that happens to end in valid padding is
// reported as ErrEncoding instead.
//
// # Key Derivation
//
// By default keys are derived with PBKDF2-HMAC-SHA256 at
// MinPBKDF2Iterations iterations. WithIterations and WithPBKDF2 raise the
// cost or switch to SHA-512; WithKeyProvider substitutes Argon2id or a
// pre-derived key. NewWithKey skips derivation entirely.
//
// # Storage and Rotation
//
// Store persists envelopes as files on any absfs.FileSystem. Keyring,
// ReEncrypt and Store.Rotate migrate data between passwords or modes.
package envelope
