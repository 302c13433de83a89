package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Ingest IngestConfig `yaml:"ingest"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// StoreConfig holds snapshot store configuration.
type StoreConfig struct {
	Path    string `yaml:"path"`
	Seal    bool   `yaml:"seal"`
	KeyPath string `yaml:"key_path"`
}

// IngestConfig holds ingestion limits. A zero Rate disables rate
// limiting.
type IngestConfig struct {
	Rate  float64 `yaml:"rate"`  // sustained requests per second
	Burst int     `yaml:"burst"` // bucket size
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Store: StoreConfig{
			Path:    "data/logs.snapshot",
			KeyPath: "data/master.key",
		},
		Ingest: IngestConfig{Burst: 1},
	}
}

// Load reads configuration from a YAML file over the defaults. A
// missing file is not an error; the defaults apply.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
