// Package config loads the phoned configuration: a YAML file in the
// configuration directory, overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the configuration directory.
const FileName = "phoned.yaml"

// DefaultAPIPort is used when neither the file nor the environment sets a port.
const DefaultAPIPort = 8080

// Environment variables that override the file.
const (
	EnvAPIPort = "PHONED_API_PORT"
	EnvPlugins = "PHONED_PLUGINS"
)

// Config represents the phoned.yaml structure
type Config struct {
	// Enabled lists the plugins to load. Empty means every registered plugin.
	Enabled []string `yaml:"enabled"`

	// APIPort is the port of the HTTP API. Zero disables the API.
	APIPort int `yaml:"api_port"`

	// Plugins holds per-plugin options, keyed by plugin name.
	Plugins map[string]map[string]string `yaml:"plugins"`
}

// Loader manages configuration file loading
type Loader struct {
	configDir string
	logger    *zap.Logger
	config    *Config
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// ConfigDir returns the directory the loader reads from.
func (l *Loader) ConfigDir() string {
	return l.configDir
}

// Load reads phoned.yaml and applies environment overrides read through
// getenv. A missing file is not an error: defaults are used.
func (l *Loader) Load(getenv func(string) string) error {
	path := filepath.Join(l.configDir, FileName)
	l.logger.Debug("Loading config", zap.String("path", path))

	config := &Config{APIPort: DefaultAPIPort}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Warn("No config file found, using defaults", zap.String("path", path))
	case err != nil:
		return fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(config, getenv); err != nil {
		return err
	}

	if config.APIPort < 0 || config.APIPort > 65535 {
		return fmt.Errorf("invalid api_port %d", config.APIPort)
	}
	if config.Plugins == nil {
		config.Plugins = make(map[string]map[string]string)
	}

	l.config = config
	l.logger.Info("Config loaded",
		zap.Strings("enabled", config.Enabled),
		zap.Int("api_port", config.APIPort))
	return nil
}

func applyEnv(config *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}

	if port := getenv(EnvAPIPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAPIPort, port, err)
		}
		config.APIPort = n
	}

	if plugins := getenv(EnvPlugins); plugins != "" {
		config.Enabled = config.Enabled[:0]
		for _, name := range strings.Split(plugins, ",") {
			if name = strings.TrimSpace(name); name != "" {
				config.Enabled = append(config.Enabled, name)
			}
		}
	}
	return nil
}

// GetConfig returns the loaded configuration, or nil before Load.
func (l *Loader) GetConfig() *Config {
	return l.config
}
