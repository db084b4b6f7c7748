package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"toolgate/pkg/logging"
)

const (
	userConfigDir  = ".config/toolgate"
	configFileName = "config.yaml"
)

// Duration wraps time.Duration so YAML values like "15m" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ElicitationConfig controls expiry of pending authorizations and in-flight
// sessions.
type ElicitationConfig struct {
	// TTL is how long an entry stays usable. Default 15m.
	TTL Duration `yaml:"ttl,omitempty"`

	// SweepInterval is how often expired entries are evicted. Default 1m.
	SweepInterval Duration `yaml:"sweepInterval,omitempty"`
}

// GoogleConfig configures the Google OAuth provider.
type GoogleConfig struct {
	// CredentialsFile is the OAuth client credentials JSON from the Google
	// Cloud console.
	CredentialsFile string `yaml:"credentialsFile,omitempty"`

	// TokenDir is where persisted grants live. Defaults to
	// ~/.config/toolgate/tokens/google.
	TokenDir string `yaml:"tokenDir,omitempty"`
}

// Config is the toolgate server configuration.
type Config struct {
	// Host and Port are the listen address.
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// OriginProxy, when set, is the externally reachable origin in front of
	// this process (reverse proxy). Connect URLs handed to clients and
	// callback redirect URIs are built from it instead of host:port.
	OriginProxy string `yaml:"originProxy,omitempty"`

	// Principal is the identity credentials are brokered for. The gateway
	// serves a single local/service principal.
	Principal string `yaml:"principal,omitempty"`

	Elicitation ElicitationConfig `yaml:"elicitation,omitempty"`
	Google      GoogleConfig      `yaml:"google,omitempty"`
}

// BaseURL returns the origin used for connect URLs and callback redirects.
func (c Config) BaseURL() string {
	if c.OriginProxy != "" {
		return c.OriginProxy
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Host:      "localhost",
		Port:      8090,
		Principal: "local",
		Elicitation: ElicitationConfig{
			TTL:           Duration(15 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
	}
}

// DefaultConfigPath returns the user-level configuration directory.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load loads configuration from configPath. Defaults are applied first and a
// missing config.yaml is not an error; a malformed one is.
func Load(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := Default()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
