package instructions

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Store resolves the system prompt for a chat turn. Overrides set through
// the configuration editor live in memory only; editing the files on disk
// is the way to change instructions permanently.
type Store struct {
	consumerPath     string
	practitionerPath string

	mu       sync.RWMutex
	override string
}

// NewStore creates a store reading from the given files.
func NewStore(consumerPath, practitionerPath string) *Store {
	return &Store{
		consumerPath:     consumerPath,
		practitionerPath: practitionerPath,
	}
}

// LoadConsumer reads the consumer instructions file from disk.
func (s *Store) LoadConsumer() (string, error) {
	return s.loadFile(s.consumerPath)
}

// LoadPractitioner reads the practitioner instructions file from disk.
func (s *Store) LoadPractitioner() (string, error) {
	return s.loadFile(s.practitionerPath)
}

func (s *Store) loadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read instructions file %s: %w", path, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("instructions file %s is empty", path)
	}
	return text, nil
}

// Resolve picks the instructions for a turn. Precedence: an explicit
// per-request override, then practitioner mode, then the session-wide
// override from the editor, then the consumer file.
func (s *Store) Resolve(custom string, practitionerMode bool) (string, error) {
	if custom != "" {
		return custom, nil
	}
	if practitionerMode {
		return s.LoadPractitioner()
	}

	s.mu.RLock()
	override := s.override
	s.mu.RUnlock()
	if override != "" {
		return override, nil
	}

	return s.LoadConsumer()
}

// Current returns the instructions the editor should display: the in-memory
// override when one is set, otherwise the consumer file.
func (s *Store) Current() (string, error) {
	s.mu.RLock()
	override := s.override
	s.mu.RUnlock()
	if override != "" {
		return override, nil
	}
	return s.LoadConsumer()
}

// SetOverride validates and installs a process-wide instructions override.
func (s *Store) SetOverride(text string) error {
	if err := Validate(text); err != nil {
		return err
	}

	s.mu.Lock()
	s.override = text
	s.mu.Unlock()
	return nil
}

// ClearOverride reverts to the on-disk instructions.
func (s *Store) ClearOverride() {
	s.mu.Lock()
	s.override = ""
	s.mu.Unlock()
}
