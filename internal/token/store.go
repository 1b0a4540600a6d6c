package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store reads and writes token.json. It re-reads the file when it changes
// on disk, so a token saved by another process is picked up.
type Store struct {
	path string

	mu      sync.Mutex
	cached  *Token
	modTime time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the stored token. A missing file yields ErrNoToken.
func (s *Store) Load() (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("stat token file: %w", err)
	}
	if s.cached != nil && info.ModTime().Equal(s.modTime) {
		return *s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Token{}, fmt.Errorf("read token file: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("decode token file: %w", err)
	}
	if err := tok.Validate(); err != nil {
		return Token{}, err
	}

	s.cached = &tok
	s.modTime = info.ModTime()
	return tok, nil
}

// Save writes tok through a temp file and rename.
func (s *Store) Save(tok Token) error {
	if err := tok.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}

	s.cached = nil
	return nil
}

// Token implements whatsapp.TokenSource
func (s *Store) Token() (string, error) {
	tok, err := s.Load()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
