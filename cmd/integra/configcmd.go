package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// runConfig prints the effective configuration, or writes it to
// settings.json with -write.
func runConfig(args []string, stdout io.Writer) error {
	fs := newFlagSet("config", os.Stderr)
	write := fs.Bool("write", false, "write the effective configuration to settings.json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !*write {
		return writeJSON(stdout, cfg)
	}
	return writeConfig(settingsPath(), cfg, stdout)
}

func writeConfig(path string, cfg Config, stdout io.Writer) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "Config written to %s\n", path)
	return nil
}
