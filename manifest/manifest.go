// Package manifest handles vmconfig.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the conventional name of a run-configuration file.
const ConfigFileName = "vmconfig.toml"

// Manifest represents a vmconfig.toml run configuration.
type Manifest struct {
	Program   Program   `toml:"program"`
	Resources Resources `toml:"resources"`
	History   History   `toml:"history"`
	Snapshot  Snapshot  `toml:"snapshot"`

	// Dir is the directory containing the vmconfig.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program configures the program to run.
type Program struct {
	Path  string `toml:"path"`
	Trace bool   `toml:"trace"`
}

// Resources configures resource ceilings enforced during execution.
type Resources struct {
	MaxVars int `toml:"max-vars"`
}

// History configures the run-history store.
type History struct {
	Path string `toml:"path"`
}

// Snapshot configures on-error snapshot persistence.
type Snapshot struct {
	Path string `toml:"path"`
}

// Load parses a vmconfig.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return &m, nil
}

// LoadFile parses a vmconfig.toml-shaped file at an exact path, rather than
// by directory convention.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.Dir = dir

	return &m, nil
}

// FindAndLoad walks up from startDir to find a vmconfig.toml file, then
// loads and returns it. Returns nil if no configuration file is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ProgramPath returns the absolute path to the configured program file.
func (m *Manifest) ProgramPath() string {
	if filepath.IsAbs(m.Program.Path) {
		return m.Program.Path
	}
	return filepath.Join(m.Dir, m.Program.Path)
}

// HistoryPath returns the absolute path to the configured history database,
// or "" if history is not configured.
func (m *Manifest) HistoryPath() string {
	if m.History.Path == "" {
		return ""
	}
	if filepath.IsAbs(m.History.Path) {
		return m.History.Path
	}
	return filepath.Join(m.Dir, m.History.Path)
}

// SnapshotPath returns the absolute path to the configured on-error
// snapshot file, or "" if snapshotting is not configured.
func (m *Manifest) SnapshotPath() string {
	if m.Snapshot.Path == "" {
		return ""
	}
	if filepath.IsAbs(m.Snapshot.Path) {
		return m.Snapshot.Path
	}
	return filepath.Join(m.Dir, m.Snapshot.Path)
}
