// Package config loads the service configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tapestry/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Spotify   SpotifyConfig   `koanf:"spotify"`
	Storage   StorageConfig   `koanf:"storage"`
	Worker    WorkerConfig    `koanf:"worker"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Mode string `koanf:"mode" validate:"oneof=development production"`
}

type AnthropicConfig struct {
	APIKey         string `koanf:"api_key"`
	Model          string `koanf:"model"`
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds" validate:"gte=0"`
}

type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	UserToken    string `koanf:"user_token"`
	MaxRetries   int    `koanf:"max_retries" validate:"gte=0"`
	BackoffMs    int    `koanf:"backoff_ms" validate:"gte=0"`
}

type StorageConfig struct {
	Driver        string `koanf:"driver" validate:"oneof=filestore sqlite"`
	ManifoldPath  string `koanf:"manifold_path" validate:"required"`
	TapestryPath  string `koanf:"tapestry_path"`
	DownvotesPath string `koanf:"downvotes_path"`
	SQLitePath    string `koanf:"sqlite_path"`
}

type WorkerConfig struct {
	Count     int `koanf:"count" validate:"gte=1"`
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Mode: "development",
		},
		Anthropic: AnthropicConfig{
			Model:          "claude-sonnet-4-5",
			BaseURL:        "https://api.anthropic.com",
			TimeoutSeconds: 60,
		},
		Spotify: SpotifyConfig{
			MaxRetries: 3,
			BackoffMs:  500,
		},
		Storage: StorageConfig{
			Driver:        "filestore",
			ManifoldPath:  "data/manifold.json",
			TapestryPath:  "data/tapestry.json",
			DownvotesPath: "data/downvotes.json",
			SQLitePath:    "data/tapestry.db",
		},
		Worker: WorkerConfig{
			Count:     2,
			QueueSize: 64,
		},
	}
}

// Load builds the configuration with precedence ENV > file > defaults and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings translates environment variable names to config paths.
// Unmapped variables are ignored so unrelated environment noise never
// pollutes the config.
var envMappings = map[string]string{
	"server_addr": "server.addr",
	"log_mode":    "log.mode",

	"anthropic_api_key":         "anthropic.api_key",
	"anthropic_model":           "anthropic.model",
	"anthropic_base_url":        "anthropic.base_url",
	"anthropic_timeout_seconds": "anthropic.timeout_seconds",

	"spotify_client_id":        "spotify.client_id",
	"spotify_client_secret":    "spotify.client_secret",
	"spotify_user_token":       "spotify.user_token",
	"spotify_max_retries":      "spotify.max_retries",
	"spotify_retry_backoff_ms": "spotify.backoff_ms",

	"storage_driver": "storage.driver",
	"manifold_path":  "storage.manifold_path",
	"tapestry_path":  "storage.tapestry_path",
	"downvotes_path": "storage.downvotes_path",
	"sqlite_path":    "storage.sqlite_path",

	"worker_count":      "worker.count",
	"worker_queue_size": "worker.queue_size",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
