// Package config loads server and client settings from the environment,
// with an optional YAML file as the base layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Backend selects a persistence implementation.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// StoreBackend selects game/user persistence: memory or postgres.
	StoreBackend string `yaml:"store_backend"`
	// AuthBackend selects token storage: memory, postgres or redis.
	AuthBackend string `yaml:"auth_backend"`

	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	AuthTTL     time.Duration `yaml:"auth_ttl"`

	// ServerURL is used by the terminal client only.
	ServerURL string `yaml:"server_url"`
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables on top.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:   ":8080",
		StoreBackend: BackendMemory,
		AuthBackend:  BackendMemory,
		AuthTTL:      24 * time.Hour,
		ServerURL:    "http://localhost:8080",
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STORE_BACKEND")); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_BACKEND")); v != "" {
		cfg.AuthBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AuthTTL = d
		} else if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuthTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_URL")); v != "" {
		cfg.ServerURL = v
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store backend")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	switch cfg.AuthBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres auth backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis auth backend")
		}
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.AuthBackend)
	}
	return cfg, nil
}
