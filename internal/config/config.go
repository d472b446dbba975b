package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/iancoleman/strcase"
	"github.com/mcncl/keycase/internal/keycase"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for keycase
type Config struct {
	API       APIConfig       `yaml:"api"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Log       LogConfig       `yaml:"log"`
	Serve     ServeConfig     `yaml:"serve"`
}

// APIConfig describes the remote endpoint
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	ProfilePath string        `yaml:"profile_path"`
	SubmitPath  string        `yaml:"submit_path"`
}

// TranscodeConfig controls key conversion at the network boundary
type TranscodeConfig struct {
	Deep     bool               `yaml:"deep"`
	Outbound keycase.Convention `yaml:"outbound"`
	Inbound  keycase.Convention `yaml:"inbound"`
	// KeyMappings pins individual keys per target convention, e.g.
	//   camel: {user_id: userID}
	KeyMappings map[string]map[string]string `yaml:"key_mappings"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServeConfig controls the mock API server
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8080",
			Timeout:     10 * time.Second,
			ProfilePath: "/users/1",
			SubmitPath:  "/users",
		},
		Transcode: TranscodeConfig{
			Deep:        true,
			Outbound:    keycase.Snake,
			Inbound:     keycase.Camel,
			KeyMappings: make(map[string]map[string]string),
		},
		Log: LogConfig{
			Level: "info",
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".keycase.yml", ".keycase.yaml", "keycase.yml", "keycase.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks values that YAML decoding cannot
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout)
	}
	if _, err := c.NewLogger(io.Discard); err != nil {
		return err
	}
	if _, err := c.KeyMappings(); err != nil {
		return err
	}
	return nil
}

// KeyMappings resolves the configured overrides into per-convention maps
func (c *Config) KeyMappings() (map[keycase.Convention]map[string]string, error) {
	out := make(map[keycase.Convention]map[string]string, len(c.Transcode.KeyMappings))
	for name, mappings := range c.Transcode.KeyMappings {
		conv, err := keycase.ParseConvention(name)
		if err != nil {
			return nil, fmt.Errorf("invalid key_mappings section '%s': %w", name, err)
		}
		if out[conv] == nil {
			out[conv] = make(map[string]string, len(mappings))
		}
		for from, to := range mappings {
			out[conv][from] = to
		}
	}
	return out, nil
}

// NewLogger builds a logger writing to out at the configured level
func (c *Config) NewLogger(out io.Writer) (logger.Logger, error) {
	cfg := logger.Config{Output: out}
	switch strcase.ToSnake(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		cfg.Level = logger.DebugLevel
	case "", "info":
		cfg.Level = logger.InfoLevel
	case "warn", "warning":
		cfg.Level = logger.WarnLevel
	case "error":
		cfg.Level = logger.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level '%s': use debug, info, warn or error", c.Log.Level)
	}
	return logger.New(cfg), nil
}

// LoadConfigWithCLI loads config with CLI argument precedence
func LoadConfigWithCLI(configPath, cliBaseURL string, cliDebug bool) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if cliBaseURL != "" {
		cfg.API.BaseURL = cliBaseURL
	}
	if cliDebug {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}
