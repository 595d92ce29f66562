package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Limits for configuration input. A complete runtime config is a few
// hundred bytes with values nested three levels deep.
const (
	maxConfigSize  = 1 << 20
	maxConfigDepth = 8
	maxEnvValueLen = 4096
	maxPathLen     = 4096
)

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatYAML
)

var configFormats = map[string]fileFormat{
	".json": formatJSON,
	".yaml": formatYAML,
	".yml":  formatYAML,
}

// formatOf selects the decoder for a config file by its extension.
func formatOf(path string) (fileFormat, error) {
	format, ok := configFormats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return 0, fmt.Errorf("unsupported config file type %q, want .json, .yaml or .yml", filepath.Ext(path))
	}
	return format, nil
}

// validateConfigPath accepts absolute paths and relative paths that stay
// inside the working directory.
func validateConfigPath(path string) error {
	switch {
	case path == "":
		return errors.New("empty config path")
	case len(path) > maxPathLen:
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	case strings.ContainsRune(path, 0):
		return errors.New("NUL byte in config path")
	case !filepath.IsAbs(path) && !filepath.IsLocal(path):
		return fmt.Errorf("relative config path leaves the working directory: %s", path)
	}
	_, err := formatOf(path)
	return err
}

// safeReadFile reads a regular config file of at most maxConfigSize bytes.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	// The file may grow between Stat and read.
	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("config file too large: more than %d bytes", maxConfigSize)
	}
	return data, nil
}

// validateEnvVar rejects override values no config field could hold.
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvValueLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvValueLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("NUL byte in environment variable %s", key)
	}
	return nil
}

// checkDepth bounds the nesting of a decoded config document. JSON and
// YAML layers decode to the same map and slice shapes.
func checkDepth(v any, depth int) error {
	if depth > maxConfigDepth {
		return fmt.Errorf("config nesting too deep: more than %d levels", maxConfigDepth)
	}
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			if err := checkDepth(child, depth+1); err != nil {
				return err
			}
		}
	case map[any]any:
		for _, child := range t {
			if err := checkDepth(child, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := checkDepth(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
