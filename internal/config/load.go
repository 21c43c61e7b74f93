package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mfo/internal/errors"

	"gopkg.in/yaml.v3"
)

// RequiredKeys must be present at the top level of every config file.
var RequiredKeys = []string{
	"downloads_folder",
	"folders",
	"file_types",
	"notifications",
	"retry_attempts",
	"retry_delay",
}

// isYAML reports whether path should be read and written as YAML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads, decodes, normalizes and validates the config at path.
// Keys missing from the file keep their defaults, except the required ones,
// whose absence is an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError("config file not found", path, errors.ConfigNotFound, err)
		}
		return nil, errors.NewFileError("error reading config file", path, errors.FileAccessDenied, err)
	}
	return Parse(data, isYAML(path))
}

// Parse decodes a config document. asYAML selects the YAML codec; JSON
// otherwise.
func Parse(data []byte, asYAML bool) (*Config, error) {
	keys, err := topLevelKeys(data, asYAML)
	if err != nil {
		return nil, errors.NewConfigError("error parsing config file", "", errors.InvalidConfig, err)
	}
	for _, k := range RequiredKeys {
		if !keys[k] {
			return nil, errors.NewConfigError("missing required key", k, errors.InvalidConfig, nil)
		}
	}

	cfg := baseDefaults()
	if asYAML {
		err = yaml.Unmarshal(data, cfg)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(cfg)
	}
	if err != nil {
		return nil, errors.NewConfigError("error parsing config file", "", errors.InvalidConfig, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func topLevelKeys(data []byte, asYAML bool) (map[string]bool, error) {
	keys := make(map[string]bool)
	if asYAML {
		var raw map[string]yaml.Node
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		for k := range raw {
			keys[k] = true
		}
		return keys, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k := range raw {
		keys[k] = true
	}
	return keys, nil
}

// Marshal encodes cfg for path's format. JSON is indented by four spaces.
func Marshal(cfg *Config, path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes cfg to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := Marshal(cfg, path)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WriteDefault writes the starter configuration to path unless a file is
// already there. It reports whether it wrote one.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := Save(Default(), path); err != nil {
		return false, err
	}
	return true, nil
}

// BackupPath is where Backup copies the config to.
func BackupPath(path string) string {
	return path + ".bak"
}

// Backup copies the config file to <path>.bak.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewFileError("cannot back up config", path, errors.FileNotFound, err)
	}
	dst := BackupPath(path)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.NewFileError("cannot write config backup", dst, errors.FileOperationFailed, err)
	}
	return dst, nil
}

// Restore replaces the config at path with the contents of from, after
// checking that from is a valid config. The file being replaced is backed
// up first.
func Restore(from, path string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return errors.NewFileError("cannot read backup", from, errors.FileNotFound, err)
	}
	if _, err := Parse(data, isYAML(from)); err != nil {
		return errors.Wrapf(err, "backup %s is not a valid config", from)
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := Backup(path); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
