package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	stateDir  = ".ragpilot"
	stateFile = "current_conversation"
)

// StateFilePath returns the full path to the current conversation state
// file, creating the state directory (~/.ragpilot) if it doesn't exist.
func StateFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	stateDirPath := filepath.Join(homeDir, stateDir)
	if err := os.MkdirAll(stateDirPath, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	return filepath.Join(stateDirPath, stateFile), nil
}

// withStateLock runs fn while holding an exclusive file lock on the state
// file. Multiple client processes (tabs, terminals) may share the file.
func withStateLock(path string, fn func() error) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

// LoadCurrentConversationID loads the persisted active conversation id.
// Returns "" when no conversation is current; a missing state file is
// not an error.
func LoadCurrentConversationID() (string, error) {
	path, err := StateFilePath()
	if err != nil {
		return "", err
	}

	var id string
	err = withStateLock(path, func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("reading state file: %w", err)
		}
		id = strings.TrimSpace(string(data))
		return nil
	})
	return id, err
}

// SaveCurrentConversationID persists the active conversation id.
func SaveCurrentConversationID(conversationID string) error {
	path, err := StateFilePath()
	if err != nil {
		return err
	}

	return withStateLock(path, func() error {
		if err := os.WriteFile(path, []byte(conversationID), 0o600); err != nil {
			return fmt.Errorf("writing state file: %w", err)
		}
		return nil
	})
}

// ClearCurrentConversationID removes the persisted active conversation.
// Idempotent: clearing when no state file exists is not an error.
func ClearCurrentConversationID() error {
	path, err := StateFilePath()
	if err != nil {
		return err
	}

	return withStateLock(path, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing state file: %w", err)
		}
		return nil
	})
}
