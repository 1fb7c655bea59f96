package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Save writes cfg to path as YAML, replacing the file atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data, keeping the permissions of
// an existing file.
func WriteFile(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := atomicWriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
