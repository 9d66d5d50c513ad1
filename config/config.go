package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the file configuration of a worker process.
type Config struct {
	Redis struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Presence struct {
		ClientRecordTTL   int     `yaml:"client_record_ttl"`
		HeartbeatInterval int     `yaml:"heartbeat_interval"`
		GhostMultiplier   float64 `yaml:"ghost_multiplier"`
		ShutdownDelay     int     `yaml:"shutdown_delay"`
	} `yaml:"presence"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from a yaml file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &cfg, nil
}

// RedisAddr joins the configured redis host and port.
func (c *Config) RedisAddr() string {
	host := c.Redis.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Redis.Port
	if port == "" {
		port = "6379"
	}
	return host + ":" + port
}
