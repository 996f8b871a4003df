package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultListenAddress = ":8446"

// ServerConfig captures the HTTP server settings for lendpoold, loaded from
// an optional YAML file.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddress:   defaultListenAddress,
		ReadTimeout:     5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// loadServerConfig reads the YAML server configuration, filling defaults for
// omitted fields.
func loadServerConfig(path string) (ServerConfig, error) {
	cfg := defaultServerConfig()
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open server config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode server config: %w", err)
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg, nil
}
