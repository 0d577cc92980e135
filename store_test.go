package envelope

import (
	"errors"
	"path"
	"sort"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/google/uuid"
)

// setupTestStore returns an empty store on an in-memory filesystem
func setupTestStore(t *testing.T, mode Mode) (*Store, absfs.FileSystem) {
	t.Helper()

	base, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("Failed to create base filesystem: %v", err)
	}

	s, err := NewStore(base, "/vault/secrets", newTestCipher(t, mode))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s, base
}

func TestNewStore_Errors(t *testing.T) {
	base, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("Failed to create base filesystem: %v", err)
	}
	c := newTestCipher(t, ModeGCM)

	if _, err := NewStore(nil, "/vault", c); !errors.Is(err, ErrNilFS) {
		t.Errorf("nil fs: error = %v, want ErrNilFS", err)
	}
	if _, err := NewStore(base, "/vault", nil); !errors.Is(err, ErrNilCipher) {
		t.Errorf("nil cipher: error = %v, want ErrNilCipher", err)
	}
	if _, err := NewStore(base, "", c); !IsValidationError(err) {
		t.Errorf("empty dir: error = %v, want ValidationError", err)
	}
}

func TestStore_PutGet(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			s, _ := setupTestStore(t, mode)

			messages := []string{"", "Hello, World!", "CBC secret message", "héllo ✓"}
			ids := make([]uuid.UUID, len(messages))
			for i, msg := range messages {
				id, err := s.Put(msg)
				if err != nil {
					t.Fatalf("Put failed: %v", err)
				}
				if id == uuid.Nil {
					t.Fatal("Put returned the nil UUID")
				}
				ids[i] = id
			}

			for i, id := range ids {
				got, err := s.Get(id)
				if err != nil {
					t.Fatalf("Get(%s) failed: %v", id, err)
				}
				if got != messages[i] {
					t.Errorf("Get(%s) = %q, want %q", id, got, messages[i])
				}
			}

			if s.Cipher().Mode() != mode {
				t.Errorf("Cipher().Mode() = %v, want %v", s.Cipher().Mode(), mode)
			}
		})
	}
}

func TestStore_EnvelopeIsDecryptable(t *testing.T) {
	s, _ := setupTestStore(t, ModeGCM)

	id, err := s.Put("Hello, World!")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	text, err := s.Envelope(id)
	if err != nil {
		t.Fatalf("Envelope failed: %v", err)
	}
	raw, err := Encoding.DecodeString(text)
	if err != nil {
		t.Fatalf("stored envelope is not base64: %v", err)
	}
	if len(raw) != 41 {
		t.Errorf("stored envelope is %d bytes, want 41", len(raw))
	}

	got, err := s.Cipher().Decrypt(text)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if got != "Hello, World!" {
		t.Errorf("Decrypt = %q", got)
	}
}

func TestStore_ListDelete(t *testing.T) {
	s, base := setupTestStore(t, ModeCBC)

	var want []string
	for i := 0; i < 5; i++ {
		id, err := s.Put("item")
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		want = append(want, id.String())
	}
	sort.Strings(want)

	// Files that are not envelopes are ignored.
	f, err := base.Create("/vault/secrets/README.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.Close()
	f, err = base.Create("/vault/secrets/not-a-uuid.env")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.Close()

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != len(want) {
		t.Fatalf("List returned %d ids, want %d", len(ids), len(want))
	}
	for i, id := range ids {
		if id.String() != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, id, want[i])
		}
	}

	if err := s.Delete(ids[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: error = %v, want ErrNotFound", err)
	}

	ids, _ = s.List()
	if len(ids) != len(want)-1 {
		t.Errorf("List after Delete returned %d ids, want %d", len(ids), len(want)-1)
	}
}

func TestStore_NotFound(t *testing.T) {
	s, _ := setupTestStore(t, ModeGCM)

	_, err := s.Get(uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !IsIOError(err) {
		t.Error("missing envelope should be an IOError")
	}
}

func TestStore_Corruption(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		content string
		want    error
	}{
		{name: "bad base64", mode: ModeGCM, content: "@@@not base64@@@", want: ErrMalformedEnvelope},
		{name: "gcm too short", mode: ModeGCM, content: Encoding.EncodeToString(make([]byte, 10)), want: ErrMalformedEnvelope},
		{name: "gcm bad tag", mode: ModeGCM, content: Encoding.EncodeToString(make([]byte, 40)), want: ErrAuthentication},
		{name: "cbc ragged", mode: ModeCBC, content: Encoding.EncodeToString(make([]byte, 40)), want: ErrMalformedEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, base := setupTestStore(t, tt.mode)

			id := uuid.New()
			f, err := base.Create(path.Join("/vault/secrets", id.String()+".env"))
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if _, err := f.Write([]byte(tt.content)); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			f.Close()

			if _, err := s.Get(id); !errors.Is(err, tt.want) {
				t.Errorf("Get error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_WrongCipher(t *testing.T) {
	s, base := setupTestStore(t, ModeGCM)

	id, err := s.Put("secret")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	other, err := NewWithKey(testKey(99), ModeGCM)
	if err != nil {
		t.Fatalf("NewWithKey failed: %v", err)
	}
	s2, err := NewStore(base, "/vault/secrets", other)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := s2.Get(id); !errors.Is(err, ErrAuthentication) {
		t.Errorf("error = %v, want ErrAuthentication", err)
	}
}
