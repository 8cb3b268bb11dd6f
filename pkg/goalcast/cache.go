package goalcast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
)

// envelope is the on-disk shape of every cached payload. Staleness is judged
// from the embedded timestamp, never from file mtime
type envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Store is a file-backed JSON cache. One key maps to one file under Dir.
// Callers are expected to be the sole writer for any key they use; the
// store takes no locks
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir, creating it if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

var defaultStore *Store

// DefaultStore returns the store rooted at the configured cache path
func DefaultStore() (*Store, error) {
	if defaultStore != nil && defaultStore.Dir == Config.CachePath {
		return defaultStore, nil
	}
	s, err := NewStore(Config.CachePath)
	if err != nil {
		return nil, err
	}
	defaultStore = s
	return s, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

// WriteRaw persists bytes for key atomically (temp file then rename) so a
// reader never observes a half-written payload
func (s *Store) WriteRaw(key string, data []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache temp for %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename cache temp for %s: %w", key, err)
	}
	return nil
}

// ReadRaw returns the stored bytes for key, or ok=false if absent
func (s *Store) ReadRaw(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Write stores payload under key wrapped in a timestamped envelope
func (s *Store) Write(key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload for %s: %w", key, err)
	}
	env := envelope{
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope for %s: %w", key, err)
	}
	return s.WriteRaw(key, data)
}

// Read unmarshals the payload stored under key into out, regardless of age.
// Returns ok=false if the key is absent or unreadable
func (s *Store) Read(key string, out any) bool {
	data, ok := s.ReadRaw(key)
	if !ok {
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("Discarding unreadable cache entry", key, err)
		return false
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		logger.Warn("Discarding cache entry with unexpected payload", key, err)
		return false
	}
	return true
}

// IsValid reports whether key exists and its embedded timestamp is within
// maxAge of now
func (s *Store) IsValid(key string, maxAge time.Duration) bool {
	data, ok := s.ReadRaw(key)
	if !ok {
		metrics.Default().RecordCacheRead(key, false)
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.Default().RecordCacheRead(key, false)
		return false
	}
	fresh := time.Since(env.Timestamp) <= maxAge
	metrics.Default().RecordCacheRead(key, fresh)
	return fresh
}

// Age returns how old the entry under key is, or ok=false if absent
func (s *Store) Age(key string) (time.Duration, bool) {
	data, ok := s.ReadRaw(key)
	if !ok {
		return 0, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, false
	}
	return time.Since(env.Timestamp), true
}

// Remove deletes the entry under key if present
func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache entry %s: %w", key, err)
	}
	return nil
}

// RemovePrefix deletes every entry whose key starts with prefix. Used to
// clear per-league fixture files before each refetch cycle
func (s *Store) RemovePrefix(prefix string) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("failed to list cache dir %s: %w", s.Dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			if err := os.Remove(filepath.Join(s.Dir, name)); err != nil {
				return fmt.Errorf("failed to clear cache entry %s: %w", name, err)
			}
		}
	}
	return nil
}
