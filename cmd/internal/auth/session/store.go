package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrStoreSealed is returned when the session file is encrypted but no
	// passphrase is configured.
	ErrStoreSealed = errors.New("session file is sealed")

	// ErrStoreCorrupt is returned when the session file cannot be decoded
	// or decrypted. Callers should treat this as "no session".
	ErrStoreCorrupt = errors.New("session file corrupt")
)

// Store persists the session across process restarts.
//
// Save must be durable before it returns: a restart immediately after a
// successful Save observes the new state.
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileStore keeps the session as a mode-0600 JSON file. When a passphrase
// is set the payload is sealed with XChaCha20-Poly1305 under an
// argon2id-derived key; otherwise it is stored in the clear, matching the
// original localStorage behavior.
//
// A plaintext file under a configured passphrase still loads, so users can
// enable sealing without losing their session; the next Save rewrites it
// sealed.
type FileStore struct {
	path       string
	passphrase []byte
}

// NewFileStore builds a FileStore at path. passphrase may be empty.
func NewFileStore(path string, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, ErrConfig
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}, nil
}

// Load reads the persisted session. A missing file is not an error and
// yields the zero Session.
func (f *FileStore) Load() (Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}

	if sealed(raw) {
		if len(f.passphrase) == 0 {
			return Session{}, ErrStoreSealed
		}
		raw, err = openEnvelope(raw, f.passphrase)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return s, nil
}

// Save writes the session durably (temp file + rename, fsync'd).
func (f *FileStore) Save(s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}

	if len(f.passphrase) > 0 {
		raw, err = sealEnvelope(raw, f.passphrase)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, f.path)
}

// Clear removes the persisted session. A missing file is fine.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
