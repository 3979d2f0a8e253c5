// Package config loads the CLI configuration from a TOML file, applies
// environment overrides, and validates the result.
//
// The backend base URL is resolved exactly once here and injected into the
// transport client; no component re-reads the environment per call.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables recognized by Load.
const (
	EnvConfigPath = "NOTEPPT_CONFIG"
	EnvBackendURL = "NOTEPPT_API_URL"
)

// Convert holds the default conversion settings used when flags are omitted.
type Convert struct {
	Provider        string `toml:"provider"`
	RemoveWatermark bool   `toml:"remove_watermark"`
	GenerateNotes   bool   `toml:"generate_notes"`
	Model           string `toml:"model"`
	DPI             int    `toml:"dpi"`
}

// Delivery selects where successful artifacts are written.
type Delivery struct {
	Sink              string `toml:"sink"` // local, dialog, s3
	OutputDir         string `toml:"output_dir"`
	S3Bucket          string `toml:"s3_bucket"`
	S3Prefix          string `toml:"s3_prefix"`
	PresignTTLMinutes int    `toml:"presign_ttl_minutes"`
}

// History configures the local job journal.
type History struct {
	Backend     string `toml:"backend"` // sqlite, dynamodb, none
	Path        string `toml:"path"`
	DynamoTable string `toml:"dynamo_table"`
}

// AWS holds optional overrides for the shared AWS SDK configuration.
type AWS struct {
	Region  string `toml:"region"`
	Profile string `toml:"profile"`
}

// Config encapsulates all configuration values for the CLI.
//
// Configuration sections:
//   - BackendBaseURL: target of /get-keys, /save-keys and /convert
//   - Convert: default provider and conversion options
//   - Delivery: artifact sink (local directory, save dialog, S3)
//   - History: job journal backend
//   - AWS: region/profile for S3, SSM and DynamoDB
type Config struct {
	BackendBaseURL        string   `toml:"backend_base_url"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	LogLevel              string   `toml:"log_level"`
	MetricsFile           string   `toml:"metrics_file"`
	Convert               Convert  `toml:"convert"`
	Delivery              Delivery `toml:"delivery"`
	History               History  `toml:"history"`
	AWS                   AWS      `toml:"aws"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error; defaults and environment overrides still apply.
// Returns the config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		c.BackendBaseURL = v
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
