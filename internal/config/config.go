// Package config loads the kmchat configuration file, overlays environment overrides
// and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is the name of the config file inside the config directory.
const DefaultConfigFile = "config.toml"

// Environment variables that override file values.
const (
	EnvAppID      = "KMCHAT_APP_ID"
	EnvBackendURL = "KMCHAT_BACKEND_URL"
	EnvLogLevel   = "KMCHAT_LOG_LEVEL"
)

// BackendConfig describes the chat backend the SDK talks to.
type BackendConfig struct {
	URL                string `toml:"url" json:"url" validate:"required,url"`
	RequestTimeout     string `toml:"request_timeout" json:"request_timeout" validate:"required"`
	ReadAttempts       uint   `toml:"read_attempts" json:"read_attempts" validate:"min=1,max=10"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// GetRequestTimeout returns the per request HTTP timeout.
func (b *BackendConfig) GetRequestTimeout() (time.Duration, error) {
	return ParseDuration(b.RequestTimeout)
}

// ClientConfig tunes the blocking SDK adapter.
type ClientConfig struct {
	CallTimeout string `toml:"call_timeout" json:"call_timeout" validate:"required"`
}

// GetCallTimeout returns how long a single SDK call may take before it is abandoned.
func (c *ClientConfig) GetCallTimeout() (time.Duration, error) {
	return ParseDuration(c.CallTimeout)
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `toml:"level" json:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `toml:"format" json:"format" validate:"oneof=console json"`
}

// StateConfig locates the session state directory. Empty means the config directory.
type StateConfig struct {
	Dir string `toml:"dir" json:"dir"`
}

// Config holds all configuration parameters.
type Config struct {
	FormatVersion string        `toml:"format_version" json:"format_version" validate:"required"`
	AppID         string        `toml:"app_id" json:"app_id" validate:"required"`
	Backend       BackendConfig `toml:"backend" json:"backend"`
	Client        ClientConfig  `toml:"client" json:"client"`
	Log           LogConfig     `toml:"log" json:"log"`
	State         StateConfig   `toml:"state" json:"state"`
}

// Default returns a configuration with every optional value filled in. AppID and the
// backend URL still have to be supplied.
func Default() *Config {
	return &Config{
		FormatVersion: FormatVersion,
		Backend: BackendConfig{
			RequestTimeout: "15s",
			ReadAttempts:   3,
		},
		Client: ClientConfig{
			CallTimeout: "30s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultConfigDir returns the OS specific config directory, e.g. ~/.config/kmchat on Linux.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "kmchat"), nil
}

// DefaultPath returns the default location of the config file.
func DefaultPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// Load reads the config file at path, or at DefaultPath when path is empty, applies a
// .env file from the working directory and the KMCHAT_* overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	_ = godotenv.Load() // a missing .env is not an error
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays the environment overrides found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAppID); ok && v != "" {
		c.AppID = v
	}
	if v, ok := lookup(EnvBackendURL); ok && v != "" {
		c.Backend.URL = MorphServer(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

var validate = validator.New()

// Validate checks required fields, value ranges, the durations and the file format version.
func (c *Config) Validate() error {
	if !IsFormatCompatible(c.FormatVersion) {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed the %q check", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if _, err := c.Backend.GetRequestTimeout(); err != nil {
		return fmt.Errorf("invalid backend.request_timeout: %w", err)
	}
	if _, err := c.Client.GetCallTimeout(); err != nil {
		return fmt.Errorf("invalid client.call_timeout: %w", err)
	}
	return nil
}

// StateDir returns the directory holding session state.
func (c *Config) StateDir() (string, error) {
	if c.State.Dir != "" {
		return c.State.Dir, nil
	}
	return DefaultConfigDir()
}

// Write stores the configuration at path with owner-only permissions.
func (c *Config) Write(path string) error {
	if path == "" {
		return errors.New("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}
	return nil
}

// MorphServer trims trailing slashes and adds http:// when no scheme is given.
func MorphServer(server string) string {
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}

// ParseDuration accepts Go duration strings ("1m30s") and the day and year units "d"
// and "y" ("7d"), which time.ParseDuration does not know.
func ParseDuration(input string) (time.Duration, error) {
	if d, err := time.ParseDuration(input); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive: %s", input)
		}
		return d, nil
	}
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", input)
	}

	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", input)
	}

	switch unit {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}
