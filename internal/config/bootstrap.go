package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// EnsureUserConfig materializes the packaged default config in the data dir
// on first run and returns the path the engine should load. An existing
// user config is never touched.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	switch _, err := os.Stat(userPath); {
	case err == nil:
		return userPath, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	def, err := os.ReadFile(defaultPath)
	if err != nil {
		return "", fmt.Errorf("read packaged config: %w", err)
	}
	if err := os.WriteFile(userPath, def, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", userPath, err)
	}
	log.Printf("[config] bootstrapped %s", userPath)
	return userPath, nil
}
