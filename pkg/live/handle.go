package live

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// HandleStore persists the session resumption handle to a flat file so the
// next run can pick the conversation back up. Writes go through to disk
// immediately; the file always holds exactly the latest handle.
type HandleStore struct {
	path string
	log  *slog.Logger

	mu     sync.Mutex
	handle string
}

// NewHandleStore creates a store over path.
func NewHandleStore(path string, log *slog.Logger) *HandleStore {
	if log == nil {
		log = slog.Default()
	}
	return &HandleStore{path: path, log: log}
}

// Load reads the persisted handle. A missing or empty file yields "".
func (s *HandleStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read session handle failed", "path", s.path, "err", err)
		}
		return ""
	}
	s.handle = strings.TrimSpace(string(data))
	return s.handle
}

// Save overwrites the persisted handle. Saving the current handle again is
// a no-op.
func (s *HandleStore) Save(handle string) error {
	if handle == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle == s.handle {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create handle dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, []byte(handle), 0o644); err != nil {
		return fmt.Errorf("write session handle: %w", err)
	}
	s.handle = handle
	s.log.Info("session handle persisted", "path", s.path)
	return nil
}

// Current returns the handle cached in memory.
func (s *HandleStore) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}
