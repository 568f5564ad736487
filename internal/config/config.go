package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines client configuration.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Agent AgentConfig `yaml:"agent"`
	Log   LogConfig   `yaml:"log"`
}

type APIConfig struct {
	// BaseURL is the REST endpoint root, e.g. "https://api.example.com/admin".
	BaseURL string `yaml:"base_url"`
	// SocketURL is the realtime endpoint. Empty derives ws(s):// from BaseURL.
	SocketURL string `yaml:"socket_url"`
	Token     string `yaml:"token"`
	Username  string `yaml:"username"`
	// RequestTimeout is the fixed deadline for every REST call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AgentConfig struct {
	// Mode selects the MCP transport: "stdio" or "off".
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		API: APIConfig{
			BaseURL:        "http://localhost:4000/admin",
			RequestTimeout: 15 * time.Second,
		},
		Agent: AgentConfig{
			Mode: "stdio",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("BOARDSYNC_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if base := os.Getenv("BOARDSYNC_API_BASE"); base != "" {
		cfg.API.BaseURL = base
	}
	if socketURL := os.Getenv("BOARDSYNC_SOCKET_URL"); socketURL != "" {
		cfg.API.SocketURL = socketURL
	}
	if token := os.Getenv("BOARDSYNC_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if username := os.Getenv("BOARDSYNC_USERNAME"); username != "" {
		cfg.API.Username = username
	}
	if timeoutStr := os.Getenv("BOARDSYNC_REQUEST_TIMEOUT_SECONDS"); timeoutStr != "" {
		seconds, err := strconv.Atoi(timeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BOARDSYNC_REQUEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.API.RequestTimeout = time.Duration(seconds) * time.Second
	}
	if mode := os.Getenv("BOARDSYNC_AGENT_MODE"); mode != "" {
		cfg.Agent.Mode = mode
	}
	if level := os.Getenv("BOARDSYNC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
