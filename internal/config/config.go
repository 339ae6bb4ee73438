// Package config persists the relay settings (pins, active state, labels)
// in a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-controller/internal/logic"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "/var/lib/relay-controller/config.yaml"

// Settings are the persisted device settings.
type Settings struct {
	Pins     logic.Pins              `yaml:"pins"`
	Polarity logic.Polarity          `yaml:"active_state"`
	Labels   [logic.NumRelays]string `yaml:"labels"`
}

// Defaults returns the factory settings.
func Defaults() Settings {
	s := Settings{
		Pins:     logic.DefaultPins,
		Polarity: logic.ActiveLow,
	}
	for i := range s.Labels {
		s.Labels[i] = fmt.Sprintf("Relay %d", i+1)
	}
	return s
}

// Validate checks the pin rules and the active state.
func (s Settings) Validate() error {
	if err := logic.CheckPins(s.Pins); err != nil {
		return err
	}
	if _, err := logic.ParsePolarity(string(s.Polarity)); err != nil {
		return err
	}
	return nil
}

// FileStore loads and saves Settings at a fixed path.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields the defaults with no error.
// An unreadable or invalid file yields the defaults and an error describing
// why the file was ignored.
func (s *FileStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("read config: %w", err)
	}

	// Keys absent from the file keep their defaults.
	loaded := Defaults()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Defaults(), fmt.Errorf("parse config %s: %w", s.path, err)
	}
	if err := loaded.Validate(); err != nil {
		return Defaults(), fmt.Errorf("invalid config %s: %w", s.path, err)
	}
	return loaded, nil
}

// Save writes the settings atomically.
func (s *FileStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
