// Package session persists the bearer credential between runs, the way a browser
// keeps it in local storage.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNoSession is returned when an account-scoped action runs without a stored credential.
var ErrNoSession = errors.New("not signed in")

type record struct {
	Token   string    `json:"token"`
	Email   string    `json:"email,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// FileStore keeps the credential in a JSON file readable only by the owner.
type FileStore struct {
	path string

	mu     sync.Mutex
	cached *record
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is the session file under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "storefront", "session.json")
}

// Token implements api.TokenSource. A missing file yields an empty token.
func (s *FileStore) Token() (string, error) {
	rec, err := s.load()
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	return rec.Token, nil
}

// Email returns the address the session was created for, if recorded.
func (s *FileStore) Email() (string, error) {
	rec, err := s.load()
	if err != nil || rec == nil {
		return "", err
	}
	return rec.Email, nil
}

// Require returns the token or ErrNoSession; account-scoped commands gate on it.
func (s *FileStore) Require() (string, error) {
	tok, err := s.Token()
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrNoSession
	}
	return tok, nil
}

// Save stores token, replacing any previous session.
func (s *FileStore) Save(token, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &record{Token: token, Email: email, SavedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "write session")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace session")
	}
	s.cached = rec
	return nil
}

// Clear removes the stored session.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove session")
	}
	return nil
}

func (s *FileStore) load() (*record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	s.cached = &rec
	return &rec, nil
}
