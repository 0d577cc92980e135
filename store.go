package envelope

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

const (
	// envelopeExt is the file extension used for stored envelopes
	envelopeExt = ".env"

	tmpExt    = ".tmp"
	backupExt = ".bak"
)

// Store persists base64 envelopes as individual files in one directory of an
// absfs.FileSystem. Files are named by a random UUID.
type Store struct {
	fs     absfs.FileSystem
	dir    string
	cipher *Cipher
}

// NewStore creates a store rooted at dir, creating the directory if needed
func NewStore(fs absfs.FileSystem, dir string, c *Cipher) (*Store, error) {
	if fs == nil {
		return nil, ErrNilFS
	}
	if c == nil {
		return nil, ErrNilCipher
	}
	if dir == "" {
		return nil, NewValidationError("dir", dir, "store directory cannot be empty")
	}

	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, NewIOError("mkdir", dir, err)
	}

	return &Store{fs: fs, dir: dir, cipher: c}, nil
}

// Cipher returns the cipher used by the store
func (s *Store) Cipher() *Cipher {
	return s.cipher
}

// Put encrypts plaintext and stores it under a new id
func (s *Store) Put(plaintext string) (uuid.UUID, error) {
	raw, err := s.cipher.EncryptBytes([]byte(plaintext))
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := s.write(id, raw); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Get reads and decrypts the envelope stored under id
func (s *Store) Get(id uuid.UUID) (string, error) {
	raw, err := s.read(id)
	if err != nil {
		return "", err
	}

	plaintext, err := s.cipher.DecryptBytes(raw)
	if err != nil {
		return "", err
	}
	return s.cipher.text(plaintext)
}

// Envelope returns the stored base64 envelope for id without decrypting it
func (s *Store) Envelope(id uuid.UUID) (string, error) {
	raw, err := s.read(id)
	if err != nil {
		return "", err
	}
	return Encoding.EncodeToString(raw), nil
}

// Delete removes the envelope stored under id
func (s *Store) Delete(id uuid.UUID) error {
	name := s.path(id)
	if err := s.fs.Remove(name); err != nil {
		return s.ioError("remove", name, err)
	}
	return nil
}

// List returns the ids of all stored envelopes in lexical order
func (s *Store) List() ([]uuid.UUID, error) {
	dir, err := s.fs.Open(s.dir)
	if err != nil {
		return nil, NewIOError("open", s.dir, err)
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, NewIOError("readdir", s.dir, err)
	}
	sort.Strings(names)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		if !strings.HasSuffix(base, envelopeExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(base, envelopeExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) path(id uuid.UUID) string {
	return path.Join(s.dir, id.String()+envelopeExt)
}

// write streams raw through a base64 encoder into a temporary file and then
// renames it over the file for id. An existing envelope is moved aside first
// and restored if the final rename fails, so a failed write never destroys it.
func (s *Store) write(id uuid.UUID, raw []byte) error {
	name := s.path(id)
	tmp := name + tmpExt
	if err := s.writeFile(tmp, raw); err != nil {
		s.fs.Remove(tmp)
		return err
	}

	backup := ""
	if _, err := s.fs.Stat(name); err == nil {
		backup = name + backupExt
		if err := s.fs.Rename(name, backup); err != nil {
			s.fs.Remove(tmp)
			return NewIOError("rename", name, err)
		}
	}

	if err := s.fs.Rename(tmp, name); err != nil {
		s.fs.Remove(tmp)
		if backup != "" {
			s.fs.Rename(backup, name)
		}
		return NewIOError("rename", tmp, err)
	}

	if backup != "" {
		s.fs.Remove(backup)
	}
	return nil
}

func (s *Store) writeFile(name string, raw []byte) error {
	f, err := s.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return NewIOError("open", name, err)
	}

	enc := base64.NewEncoder(Encoding, f)
	if _, err := enc.Write(raw); err != nil {
		f.Close()
		return NewIOError("write", name, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return NewIOError("write", name, err)
	}
	if err := f.Close(); err != nil {
		return NewIOError("close", name, err)
	}
	return nil
}

// read returns the decoded raw envelope stored for id
func (s *Store) read(id uuid.UUID) ([]byte, error) {
	name := s.path(id)
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, s.ioError("open", name, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(base64.NewDecoder(Encoding, f))
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, newMalformedError(s.cipher.Mode(), 0, fmt.Sprintf("invalid base64 in %s: %v", name, err))
		}
		return nil, NewIOError("read", name, err)
	}
	return raw, nil
}

// ioError wraps err, mapping missing files to ErrNotFound
func (s *Store) ioError(op, name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return &IOError{Operation: op, Path: name, Message: ErrNotFound.Error(), Err: ErrNotFound}
	}
	return NewIOError(op, name, err)
}
