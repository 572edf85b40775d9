package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kenivoire-client/internal/model"
)

// Store owns the current Session. The durable copy is written before the
// in-memory value on every Set, so a crash in between can never leave a
// restarted client with a credential pair newer than what was persisted.
type Store struct {
	path string

	mu      sync.RWMutex
	current *Session

	persistMu sync.Mutex
}

type persistedTokensFile struct {
	Version int    `json:"version"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	SavedAt int64  `json:"savedAt"`
}

// NewStore creates a token store backed by the given file. An empty path
// keeps the store memory-only. An existing file is loaded so a restart
// reconstructs the Session without re-authenticating; a corrupt or
// unreadable file is treated as logged out.
func NewStore(path string) *Store {
	s := &Store{path: path}
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return s
	}
	var file persistedTokensFile
	if err := json.Unmarshal(data, &file); err != nil || file.Version != 1 {
		return s
	}
	sess, err := FromTokenPair(model.TokenPair{Access: file.Access, Refresh: file.Refresh})
	if err != nil {
		return s
	}
	s.current = &sess
	return s
}

// Set replaces the Session wholesale: durable write first, memory second.
func (s *Store) Set(sess Session) error {
	if err := s.persist(sess); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Clear erases the durable copy and forgets the Session.
func (s *Store) Clear() error {
	var removeErr error
	if s.path != "" {
		s.persistMu.Lock()
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			removeErr = err
		}
		s.persistMu.Unlock()
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return removeErr
}

// IsExpired reports whether the access credential has passed its expiry
// at the caller-supplied time. No session counts as expired.
func (s *Store) IsExpired(now time.Time) bool {
	sess, ok := s.Current()
	if !ok {
		return true
	}
	return sess.Expired(now)
}

func (s *Store) persist(sess Session) error {
	if s.path == "" {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	file := persistedTokensFile{
		Version: 1,
		Access:  sess.AccessToken,
		Refresh: sess.RefreshToken,
		SavedAt: time.Now().UnixMilli(),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
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
	return os.Rename(tmpName, s.path)
}

// ErrNoSession is returned by operations that require authentication
// when the store holds no Session.
var ErrNoSession = errors.New("no active session")
