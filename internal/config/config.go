package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"

	envPrefix = "ORCAFACIL"
)

// Config holds runtime settings of the sync runner.
type Config struct {
	DBPath        string        `split_words:"true"`
	RemoteURL     string        `split_words:"true"`
	Transport     string        `split_words:"true"`
	APIKey        string        `split_words:"true"`
	AccessToken   string        `split_words:"true"`
	OwnerID       string        `split_words:"true"`
	RemoteTimeout time.Duration `split_words:"true"`
	LogLevel      string        `split_words:"true"`
	LogFile       string        `split_words:"true"`
	RecentLimit   int           `split_words:"true"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "orcafacil.db"
	c.RemoteURL = "http://127.0.0.1:8080"
	c.Transport = TransportHTTP
	c.RemoteTimeout = 15 * time.Second
	c.LogLevel = "info"
	c.RecentLimit = 5
}

// Validate reports settings the runner cannot start with.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportGRPC:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("database path is empty")
	}
	if strings.TrimSpace(c.RemoteURL) == "" {
		return fmt.Errorf("remote url is empty")
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("remote timeout must be positive, got %s", c.RemoteTimeout)
	}
	if c.RecentLimit < 0 {
		return fmt.Errorf("recent limit must not be negative, got %d", c.RecentLimit)
	}
	return nil
}

// LoadConfig builds a Config from os.Args and the process environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then dotenv, file, environment and flags from args.
// Later sources take precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotenv(args); err != nil {
		return nil, err
	}
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
