package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration: a yaml file provides the baseline,
// environment variables override the knobs that differ per deployment.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Gateway struct {
		PingIntervalSec int `yaml:"ping_interval_sec"`
		ReadTimeoutSec  int `yaml:"read_timeout_sec"`
		WriteTimeoutSec int `yaml:"write_timeout_sec"`
	} `yaml:"gateway"`
	Mirror struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"mirror"`
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

// loadConfig reads the yaml config file when present and layers environment
// overrides on top. A missing file is not an error; defaults apply.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Mirror.URL = getEnv("NATS_URL", config.Mirror.URL)
	if config.Mirror.SubjectPrefix == "" {
		config.Mirror.SubjectPrefix = "drawdash.rooms"
	}
	config.Gateway.PingIntervalSec = getEnvAsInt("WS_PING_INTERVAL_SEC", config.Gateway.PingIntervalSec)
	config.Gateway.ReadTimeoutSec = getEnvAsInt("WS_READ_TIMEOUT_SEC", config.Gateway.ReadTimeoutSec)
	config.Gateway.WriteTimeoutSec = getEnvAsInt("WS_WRITE_TIMEOUT_SEC", config.Gateway.WriteTimeoutSec)

	return &config, nil
}
