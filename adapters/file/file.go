package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

// Storage persists the token in a small JSON document on disk, keyed by
// core.TokenStorageKey. Unknown keys in the document are preserved.
// With a Sealer the value is encrypted at rest.
type Storage struct {
	path   string
	sealer *crypto.Sealer

	mu sync.Mutex
}

var _ core.TokenStorage = (*Storage)(nil)

type Option func(*Storage)

// WithSealer encrypts the stored token with s
func WithSealer(s *crypto.Sealer) Option {
	return func(st *Storage) { st.sealer = s }
}

func New(path string, opts ...Option) (*Storage, error) {
	if path == "" {
		return nil, errors.New("token file path is required")
	}
	s := &Storage{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultPath is the token file under the user's config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bantay", "session.json"), nil
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) LoadToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	value, ok := doc[core.TokenStorageKey]
	if !ok || value == "" {
		return "", core.ErrTokenNotFound
	}
	if s.sealer == nil {
		return value, nil
	}

	plain, err := s.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("open stored token: %w", err)
	}
	return string(plain), nil
}

func (s *Storage) SaveToken(ctx context.Context, token string) error {
	value := token
	if s.sealer != nil {
		sealed, err := s.sealer.Seal([]byte(token))
		if err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
		value = sealed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[core.TokenStorageKey] = value
	return s.write(doc)
}

func (s *Storage) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc[core.TokenStorageKey]; !ok {
		return nil
	}
	delete(doc, core.TokenStorageKey)
	return s.write(doc)
}

func (s *Storage) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the file atomically; the token file is only readable by its owner
func (s *Storage) write(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
