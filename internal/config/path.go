package config

import (
	"os"
	"path/filepath"
)

// DefaultPath returns ~/.config/pavolctl/config.yaml (or a cwd fallback).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".config", "pavolctl", "config.yaml")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "pavolctl.yaml")
}

// ExpandPath expands a leading "~" using the home directory.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
