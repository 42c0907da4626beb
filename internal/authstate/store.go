// internal/authstate/store.go

// Package authstate persists browser storage state (cookies plus per-origin
// local storage) on the filesystem, keyed by project id and state name. The
// engine never deletes states; concurrent writers to the same key are not
// coordinated, last write wins.
package authstate

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/mjbeckett/stepflow/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is a filesystem-backed auth state area rooted at a single directory.
// Layout: <root>/<project_id>/<state_name>.json.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("auth state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create auth state directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Path returns the file path for a (project, state) key.
func (s *Store) Path(projectID, stateName string) string {
	return filepath.Join(s.root, projectID, stateName+".json")
}

// Exists reports whether a state has been persisted for the given key.
func (s *Store) Exists(projectID, stateName string) bool {
	info, err := os.Stat(s.Path(projectID, stateName))
	return err == nil && !info.IsDir()
}

// Save writes the state for the given key, overwriting any previous file.
func (s *Store) Save(projectID, stateName string, state *schemas.AuthState) error {
	if projectID == "" {
		return fmt.Errorf("project id is required to save auth state")
	}
	if stateName == "" {
		stateName = "default"
	}

	dir := filepath.Join(s.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create project auth state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode auth state: %w", err)
	}
	if err := os.WriteFile(s.Path(projectID, stateName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write auth state: %w", err)
	}
	return nil
}

// Load reads the state for the given key.
func (s *Store) Load(projectID, stateName string) (*schemas.AuthState, error) {
	if stateName == "" {
		stateName = "default"
	}
	data, err := os.ReadFile(s.Path(projectID, stateName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("auth state %q not found for project %q: run save_auth_state first", stateName, projectID)
		}
		return nil, fmt.Errorf("failed to read auth state: %w", err)
	}

	var state schemas.AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode auth state %q: %w", stateName, err)
	}
	return &state, nil
}
