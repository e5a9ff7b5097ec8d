package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	historyFile = "history.json"

	// MaxHistoryTurns bounds the transcript kept on disk.
	MaxHistoryTurns = 100
)

// Turn is one message of an interactive chat session.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// History is the transcript of the last interactive chat session, oldest
// first.
type History struct {
	Turns []Turn `json:"turns"`
}

// Append adds a turn, dropping the oldest ones beyond MaxHistoryTurns.
func (h *History) Append(role, content string, at time.Time) {
	h.Turns = append(h.Turns, Turn{Role: role, Content: content, At: at})
	if over := len(h.Turns) - MaxHistoryTurns; over > 0 {
		h.Turns = h.Turns[over:]
	}
}

// LoadHistory loads the transcript from <target>/history.json.
// Returns an empty History if none has been saved.
func (m *Manager) LoadHistory(overrideDir string) (*History, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &History{}, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, historyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &History{}, nil
		}
		return nil, fmt.Errorf("reading chat history: %w", err)
	}

	history := &History{}
	if err := json.Unmarshal(data, history); err != nil {
		return nil, fmt.Errorf("parsing chat history: %w", err)
	}

	return history, nil
}

// SaveHistory persists the transcript, creating ~/.chatrelay/ if needed.
func (m *Manager) SaveHistory(history *History, overrideDir string) error {
	if history == nil {
		return errors.New("cannot save nil chat history")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chat history: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, historyFile), data, 0o600); err != nil {
		return fmt.Errorf("writing chat history: %w", err)
	}

	return nil
}

// ClearHistory removes the transcript. Returns nil if there is none.
func (m *Manager) ClearHistory(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, historyFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing chat history: %w", err)
	}

	return nil
}
