package httpsdk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStateFile is the name of the session state file inside the state directory.
const DefaultStateFile = "session.yaml"

// SessionState is the identity the SDK persists between process runs. Credentials are
// never stored; only the token the backend issued for them.
type SessionState struct {
	Token      string    `yaml:"token"`
	UserID     string    `yaml:"user_id"`
	Visitor    bool      `yaml:"visitor"`
	AppID      string    `yaml:"app_id"`
	LoggedInAt time.Time `yaml:"logged_in_at"`
}

// Store persists the SessionState. Load returns nil, nil when nothing is stored.
type Store interface {
	Load() (*SessionState, error)
	Save(state *SessionState) error
	Clear() error
}

// FileStore keeps the session in a YAML file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*SessionState, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read session file: %w", err)
	}
	var state SessionState
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unable to parse session file: %w", err)
	}
	if state.Token == "" {
		return nil, nil
	}
	return &state, nil
}

func (s *FileStore) Save(state *SessionState) error {
	if s.path == "" {
		return errors.New("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("unable to create state directory: %w", err)
	}
	raw, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("unable to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("unable to write session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove session file: %w", err)
	}
	return nil
}

// MemoryStore keeps the session in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state *SessionState
}

func (m *MemoryStore) Load() (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	cp := *m.state
	return &cp, nil
}

func (m *MemoryStore) Save(state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.state = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
