// Package session persists the client-side session flags the web app kept in
// localStorage. The shape is deliberately informal and unversioned for parity
// with the original keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type State struct {
	IsAdmin      bool            `json:"isAdmin,omitempty"`
	AdminToken   string          `json:"adminToken,omitempty"`
	IsUser       bool            `json:"isUser,omitempty"`
	UserToken    string          `json:"userToken,omitempty"`
	UserData     json.RawMessage `json:"userData,omitempty"`
	TelegramData json.RawMessage `json:"telegramData,omitempty"`
	AdminCode    string          `json:"adminCode,omitempty"`
}

// ActiveToken returns the credential the session should authenticate with,
// preferring the admin token like the original login flow.
func (s State) ActiveToken() string {
	if s.AdminToken != "" {
		return s.AdminToken
	}
	return s.UserToken
}

type Store interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (State, error)
	Clear(ctx context.Context) error
}

// FileStore keeps the session state in a single JSON file. Loading a missing
// file yields a zero state, mirroring an empty localStorage.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: file path is required")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(ctx context.Context, state State) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: create state directory: %w", err)
		}
	}

	// Write-then-rename so a crash never leaves a truncated state file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("session: write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replace state: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("session: read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("session: decode state: %w", err)
	}
	return state, nil
}

// Clear is the logout path: the whole file goes, like the original full
// localStorage wipe.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
