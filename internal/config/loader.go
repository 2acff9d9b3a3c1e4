package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML config on top of Default(). An empty path yields the
// defaults.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()
	if filePath == "" {
		return cfg, cfg.Validate()
	}

	if err := decodeFile(filePath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.LayoutFile != "" {
		layoutPath := cfg.LayoutFile
		// Relative layout paths resolve against the config file directory
		if !filepath.IsAbs(layoutPath) {
			layoutPath = filepath.Join(filepath.Dir(filePath), layoutPath)
		}
		layout, err := LoadLayout(layoutPath, cfg.Layout)
		if err != nil {
			return nil, err
		}
		cfg.Layout = *layout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

// LoadLayout reads column ordinals from a YAML file. Keys missing from the
// file keep the values of base.
func LoadLayout(filePath string, base LayoutConfig) (*LayoutConfig, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("layout file not found: %s: %w", filePath, err)
	}

	layout := base
	if err := decodeFile(filePath, &layout); err != nil {
		return nil, fmt.Errorf("failed to parse layout YAML: %w", err)
	}

	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &layout, nil
}

func decodeFile(filePath string, out any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	// An empty or comment-only file overrides nothing.
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
