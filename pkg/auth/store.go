// Package auth persists the session credential (token + user profile)
// under the state directory.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agrigrow/agrichat/pkg/api"
)

// ErrNotLoggedIn is returned when no credential has been saved.
var ErrNotLoggedIn = errors.New("not logged in")

const credentialFile = "credentials.json"

// Credential is a persisted login session.
type Credential struct {
	Token string   `json:"token"`
	User  api.User `json:"user"`
}

// Store reads and writes the credential file.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, credentialFile)
}

// Save writes the credential, creating the state directory if needed.
func (s *Store) Save(cred Credential) error {
	if cred.Token == "" {
		return errors.New("token cannot be empty")
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0o600)
}

// Load returns the saved credential, or ErrNotLoggedIn when none exists.
func (s *Store) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("error parsing credential file: %w", err)
	}
	if cred.Token == "" {
		return nil, ErrNotLoggedIn
	}
	return &cred, nil
}

// Clear removes the saved credential. Clearing when logged out is a no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
