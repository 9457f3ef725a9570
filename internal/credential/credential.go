// Package credential resolves which hero-sms api key a request uses and
// manages the optionally persisted copy of it.
package credential

import (
	"encoding/json"
	"errors"
	"os"

	"go.uber.org/zap"
)

var ErrMissing = errors.New("api key is not configured")

// Resolve returns the first credential present, in fixed order: the
// request-scoped cookie value, the persisted key file, then the process
// environment default.
func Resolve(cookieKey, fileKey, envKey string) (string, error) {
	for _, k := range []string{cookieKey, fileKey, envKey} {
		if k != "" {
			return k, nil
		}
	}
	return "", ErrMissing
}

// Store persists the api key as a single JSON record on disk. A missing or
// unparseable file reads as an empty record, never an error. Writes are
// read-then-write without locking; concurrent saves are last-write-wins.
type Store struct {
	path string
	log  *zap.Logger
}

type record struct {
	APIKey string `json:"api_key,omitempty"`
}

func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Load returns the persisted key, or "" when none is stored.
func (s *Store) Load() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("key file is unreadable, treating as empty", zap.String("path", s.path), zap.Error(err))
		return ""
	}
	return rec.APIKey
}

// HasKey reports whether a key is persisted.
func (s *Store) HasKey() bool {
	return s.Load() != ""
}

// Save writes the key, replacing any previous one.
func (s *Store) Save(key string) error {
	data, err := json.MarshalIndent(record{APIKey: key}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the persisted key. Clearing when nothing was ever stored is
// not an error.
func (s *Store) Clear() error {
	data, err := json.MarshalIndent(record{}, "", "  ")
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(s.path); errors.Is(statErr, os.ErrNotExist) {
		return nil
	}
	return os.WriteFile(s.path, data, 0o600)
}
