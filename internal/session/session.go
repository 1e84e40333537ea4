// Package session persists the console's authentication token and user
// profile in the system keyring, with a file-backed fallback for headless
// environments.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

const itemKey = "session"

// Session is the persisted login state: one opaque token plus the profile of
// the user it belongs to.
type Session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Store reads and writes the persisted session. The token's lifecycle is
// owned by the login/logout flows; the sync client only reads it.
type Store struct {
	ring   keyring.Keyring
	logger *zap.Logger
}

// Open opens the session store. fileDir backs the fallback file keyring used
// when no native backend is available.
func Open(serviceName, fileDir string, logger *zap.Logger) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      serviceName,
		FileDir:          fileDir,
		FilePasswordFunc: keyring.FixedStringPrompt(serviceName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &Store{ring: ring, logger: logger}, nil
}

// Save persists the session, replacing any previous one.
func (s *Store) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.ring.Set(keyring.Item{Key: itemKey, Data: data}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load returns the stored session, or nil when none exists.
func (s *Store) Load() (*Session, error) {
	item, err := s.ring.Get(itemKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("stored session is corrupt: %w", err)
	}
	return &sess, nil
}

// Clear removes the stored session. Clearing an absent session is a no-op.
func (s *Store) Clear() error {
	if err := s.ring.Remove(itemKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Token returns the stored token, or the empty string when not logged in.
// It satisfies the TokenSource contract of the sync client and REST client.
func (s *Store) Token() (string, error) {
	sess, err := s.Load()
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", nil
	}
	return sess.Token, nil
}
