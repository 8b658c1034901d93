// Package dotdir manages the .hvision/ and ~/.hvision directories.
//
// The directory holds config.toml, the default SQLite model registry and the
// run history: the latest completed run of every job, persisted as JSON.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".hvision"

	// EnvDir names a directory that replaces ./.hvision and ~/.hvision.
	EnvDir = "HVISION_DIR"
)

// Manager resolves the hvision directory.
type Manager struct {
	getenv func(string) string
}

func NewManager() *Manager {
	return &Manager{getenv: os.Getenv}
}

// Target returns the absolute hvision directory, creating it if needed.
// The first match wins:
//  1. overrideDir (--config-dir)
//  2. $HVISION_DIR
//  3. ./.hvision, when it exists
//  4. ~/.hvision
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating hvision directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// Path returns name inside the resolved directory.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := m.getenv(EnvDir); env != "" {
		return env, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	local := filepath.Join(cwd, dirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}
