package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string        `yaml:"port"`
		GracePeriod  time.Duration `yaml:"grace_period"`
		AllowOrigins []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Relay struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.GracePeriod = 10 * time.Second
	cfg.Relay.SubjectPrefix = "rooms.events"
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Environment overrides the file.
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	if v := getEnvAsInt("GRACE_PERIOD_SECONDS", 0); v > 0 {
		cfg.Server.GracePeriod = time.Duration(v) * time.Second
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Relay.Enabled = true
		cfg.Relay.URL = v
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
