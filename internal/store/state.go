// Package store owns everything Coworker persists on disk: the versioned
// application state document and the per-thread transcript logs. The state
// document is always read and written whole; callers load it, mutate in
// memory, and save it back.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PersistedState is the single versioned state document. A missing file loads
// as an empty version-1 document; a zero version on disk is a pre-versioning
// legacy document and is normalized to 1.
type PersistedState struct {
	Version    int               `json:"version"`
	Workspaces []WorkspaceRecord `json:"workspaces"`
	Threads    []ThreadRecord    `json:"threads"`
}

type WorkspaceRecord struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Path             string  `json:"path"`
	CreatedAt        string  `json:"createdAt"`
	LastOpenedAt     string  `json:"lastOpenedAt"`
	DefaultProvider  *string `json:"defaultProvider"`
	DefaultModel     *string `json:"defaultModel"`
	DefaultEnableMCP bool    `json:"defaultEnableMcp"`
	Yolo             bool    `json:"yolo"`
}

type ThreadRecord struct {
	ID            string `json:"id"`
	WorkspaceID   string `json:"workspaceId"`
	Title         string `json:"title"`
	CreatedAt     string `json:"createdAt"`
	LastMessageAt string `json:"lastMessageAt"`
	Status        string `json:"status"`
}

// StateStore loads and saves the state document at <dataDir>/state.json.
// One mutex serializes all file I/O for the document so a reader never sees
// a half-written file; serialization happens outside the lock.
type StateStore struct {
	path string
	mu   sync.Mutex
}

func NewStateStore(dataDir string) *StateStore {
	return &StateStore{path: filepath.Join(dataDir, "state.json")}
}

// Path returns the backing file path.
func (s *StateStore) Path() string { return s.path }

func defaultState() *PersistedState {
	return &PersistedState{Version: 1, Workspaces: []WorkspaceRecord{}, Threads: []ThreadRecord{}}
}

// Load reads the whole document. A missing file is not an error; it yields
// the default empty version-1 document.
func (s *StateStore) Load() (*PersistedState, error) {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return defaultState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st PersistedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if st.Version == 0 {
		st.Version = 1
	}
	if st.Workspaces == nil {
		st.Workspaces = []WorkspaceRecord{}
	}
	if st.Threads == nil {
		st.Threads = []ThreadRecord{}
	}
	return &st, nil
}

// Save writes the whole document atomically: serialize, write a sibling temp
// file, then rename over the real path. A failed write never corrupts the
// previously committed file.
func (s *StateStore) Save(st *PersistedState) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
