package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned by Save when the file exists and overwrite is false.
var ErrExists = errors.New("config file already exists")

// Save writes cfg as YAML to path, creating parent directories.
// The file is replaced atomically through a temporary sibling.
func Save(path string, cfg Config, overwrite bool) error {
	if path == "" {
		return errors.New("path is required")
	}
	path = ExpandPath(path)

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}
