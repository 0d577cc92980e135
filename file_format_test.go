package envelope

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderAndEnvelopeSize(t *testing.T) {
	tests := []struct {
		mode   Mode
		n      int
		header int
		want   int
	}{
		{ModeCBC, 0, 16, 32},
		{ModeCBC, 13, 16, 32},
		{ModeCBC, 16, 16, 48},
		{ModeCBC, 18, 16, 48},
		{ModeGCM, 0, 28, 28},
		{ModeGCM, 13, 28, 41},
		{ModeGCM, 1000, 28, 1028},
		{ModeUnknown, 10, 0, 0},
	}

	for _, tt := range tests {
		if got := HeaderSize(tt.mode); got != tt.header {
			t.Errorf("HeaderSize(%v) = %d, want %d", tt.mode, got, tt.header)
		}
		if got := EnvelopeSize(tt.mode, tt.n); got != tt.want {
			t.Errorf("EnvelopeSize(%v, %d) = %d, want %d", tt.mode, tt.n, got, tt.want)
		}
	}
}

func TestParseEnvelope_Offsets(t *testing.T) {
	data := make([]byte, 48)
	for i := range data {
		data[i] = byte(i)
	}

	cbc, err := ParseEnvelope(ModeCBC, data)
	if err != nil {
		t.Fatalf("ParseEnvelope(CBC) failed: %v", err)
	}
	if !bytes.Equal(cbc.IV, data[:16]) || cbc.Tag != nil || !bytes.Equal(cbc.Ciphertext, data[16:]) {
		t.Error("CBC envelope split at wrong offsets")
	}
	if err := cbc.Validate(); err != nil {
		t.Errorf("Validate(CBC) failed: %v", err)
	}

	gcm, err := ParseEnvelope(ModeGCM, data)
	if err != nil {
		t.Fatalf("ParseEnvelope(GCM) failed: %v", err)
	}
	if !bytes.Equal(gcm.IV, data[:12]) || !bytes.Equal(gcm.Tag, data[12:28]) || !bytes.Equal(gcm.Ciphertext, data[28:]) {
		t.Error("GCM envelope split at wrong offsets")
	}
	if err := gcm.Validate(); err != nil {
		t.Errorf("Validate(GCM) failed: %v", err)
	}

	for _, env := range []*Envelope{cbc, gcm} {
		if env.Size() != len(data) {
			t.Errorf("%v: Size() = %d, want %d", env.Mode, env.Size(), len(data))
		}
		if !bytes.Equal(env.Bytes(), data) {
			t.Errorf("%v: Bytes() does not reproduce the input", env.Mode)
		}
		if env.String() != Encoding.EncodeToString(data) {
			t.Errorf("%v: String() does not match base64 of the input", env.Mode)
		}

		var buf bytes.Buffer
		n, err := env.WriteTo(&buf)
		if err != nil {
			t.Fatalf("%v: WriteTo failed: %v", env.Mode, err)
		}
		if n != int64(len(data)) || !bytes.Equal(buf.Bytes(), data) {
			t.Errorf("%v: WriteTo wrote %d bytes, want %d", env.Mode, n, len(data))
		}
	}
}

func TestParseEnvelope_Errors(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		size int
		want error
	}{
		{name: "cbc empty", mode: ModeCBC, size: 0, want: ErrMalformedEnvelope},
		{name: "cbc short iv", mode: ModeCBC, size: 15, want: ErrMalformedEnvelope},
		{name: "cbc no ciphertext", mode: ModeCBC, size: 16, want: ErrMalformedEnvelope},
		{name: "cbc partial block", mode: ModeCBC, size: 20, want: ErrMalformedEnvelope},
		{name: "gcm empty", mode: ModeGCM, size: 0, want: ErrMalformedEnvelope},
		{name: "gcm short", mode: ModeGCM, size: 27, want: ErrMalformedEnvelope},
		{name: "unknown mode", mode: ModeUnknown, size: 64, want: ErrInvalidMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.mode, make([]byte, tt.size))
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseEnvelope error = %v, want %v", err, tt.want)
			}
		})
	}

	if env, err := ParseEnvelope(ModeGCM, make([]byte, GCMHeaderSize)); err != nil || len(env.Ciphertext) != 0 {
		t.Errorf("header-only GCM envelope should parse with empty ciphertext, got %v", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	c := newTestCipher(t, ModeGCM)
	ct, err := c.Encrypt("Hello, World!")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	env, err := DecodeEnvelope(ModeGCM, ct)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	if len(env.IV) != GCMNonceSize || len(env.Tag) != GCMTagSize || len(env.Ciphertext) != 13 {
		t.Errorf("unexpected part sizes: iv=%d tag=%d ct=%d", len(env.IV), len(env.Tag), len(env.Ciphertext))
	}
	if env.String() != ct {
		t.Error("String() should reproduce the encoded envelope")
	}

	if _, err := DecodeEnvelope(ModeGCM, "***"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("DecodeEnvelope(bad base64) error = %v, want ErrMalformedEnvelope", err)
	}
}

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "cbc ok", env: Envelope{Mode: ModeCBC, IV: make([]byte, 16), Ciphertext: make([]byte, 32)}},
		{name: "gcm ok", env: Envelope{Mode: ModeGCM, IV: make([]byte, 12), Tag: make([]byte, 16)}},
		{name: "cbc nil iv", env: Envelope{Mode: ModeCBC, Ciphertext: make([]byte, 16)}, wantErr: true},
		{name: "cbc with tag", env: Envelope{Mode: ModeCBC, IV: make([]byte, 16), Tag: make([]byte, 16), Ciphertext: make([]byte, 16)}, wantErr: true},
		{name: "cbc ragged", env: Envelope{Mode: ModeCBC, IV: make([]byte, 16), Ciphertext: make([]byte, 17)}, wantErr: true},
		{name: "gcm wrong nonce", env: Envelope{Mode: ModeGCM, IV: make([]byte, 16), Tag: make([]byte, 16)}, wantErr: true},
		{name: "gcm short tag", env: Envelope{Mode: ModeGCM, IV: make([]byte, 12), Tag: make([]byte, 8)}, wantErr: true},
		{name: "unknown mode", env: Envelope{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestTamper_GCM flips every bit of a GCM envelope and expects each
// modification to be rejected.
func TestTamper_GCM(t *testing.T) {
	c := newTestCipher(t, ModeGCM)
	raw, err := c.EncryptBytes([]byte("Hello, World!"))
	if err != nil {
		t.Fatalf("EncryptBytes failed: %v", err)
	}

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := bytes.Clone(raw)
			tampered[i] ^= 1 << bit

			_, err := c.Decrypt(Encoding.EncodeToString(tampered))
			if !errors.Is(err, ErrAuthentication) {
				t.Fatalf("byte %d bit %d: error = %v, want ErrAuthentication", i, bit, err)
			}
			if !IsAuthenticationError(err) {
				t.Fatalf("byte %d bit %d: error should be an AuthenticationError", i, bit)
			}
		}
	}

	// Truncation that keeps the header intact also fails authentication.
	if _, err := c.DecryptBytes(raw[:len(raw)-1]); !errors.Is(err, ErrAuthentication) {
		t.Errorf("truncated envelope: error = %v, want ErrAuthentication", err)
	}
}

// TestTamper_CBCPadding alters the block preceding the last one so the final
// plaintext block decrypts with a predictable, invalid padding.
func TestTamper_CBCPadding(t *testing.T) {
	c := newTestCipher(t, ModeCBC)

	// 18 bytes of text: two blocks, the second ending in 14 bytes of 0x0e.
	raw, err := c.EncryptBytes([]byte("CBC secret message"))
	if err != nil {
		t.Fatalf("EncryptBytes failed: %v", err)
	}
	if len(raw) != 48 {
		t.Fatalf("envelope length = %d, want 48", len(raw))
	}

	tests := []struct {
		name  string
		index int // byte of the first ciphertext block
		delta byte
	}{
		{name: "last pad byte out of range", index: 16 + 15, delta: 0x80},
		{name: "last pad byte zero", index: 16 + 15, delta: 0x0e},
		{name: "inner pad byte mismatch", index: 16 + 5, delta: 0x01},
		{name: "first pad byte mismatch", index: 16 + 2, delta: 0x10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := bytes.Clone(raw)
			tampered[tt.index] ^= tt.delta

			_, err := c.Decrypt(Encoding.EncodeToString(tampered))
			if !errors.Is(err, ErrPadding) {
				t.Fatalf("error = %v, want ErrPadding", err)
			}
			if !IsCorruptionError(err) {
				t.Error("padding error should be a CorruptionError")
			}
		})
	}
}

// TestTamper_CBCSingleBlock tampers the IV of a one-block envelope, which
// XORs directly into the padding.
func TestTamper_CBCSingleBlock(t *testing.T) {
	c := newTestCipher(t, ModeCBC)

	raw, err := c.EncryptBytes([]byte("Hello, World!")) // 13 bytes + 3 x 0x03
	if err != nil {
		t.Fatalf("EncryptBytes failed: %v", err)
	}

	tampered := bytes.Clone(raw)
	tampered[14] ^= 0x04 // second-to-last pad byte becomes 0x07

	if _, err := c.DecryptBytes(tampered); !errors.Is(err, ErrPadding) {
		t.Fatalf("error = %v, want ErrPadding", err)
	}
}
