package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/orcafacil/internal/flagx"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used for JSON and YAML unmarshalling only. Zero values
// mean "not set" and keep the current value.
type FileConfig struct {
	DBPath        string         `json:"db_path" yaml:"db_path"`
	RemoteURL     string         `json:"remote_url" yaml:"remote_url"`
	Transport     string         `json:"transport" yaml:"transport"`
	APIKey        string         `json:"api_key" yaml:"api_key"`
	AccessToken   string         `json:"access_token" yaml:"access_token"`
	OwnerID       string         `json:"owner_id" yaml:"owner_id"`
	RemoteTimeout timex.Duration `json:"remote_timeout" yaml:"remote_timeout"`
	LogLevel      string         `json:"log_level" yaml:"log_level"`
	LogFile       string         `json:"log_file" yaml:"log_file"`
	RecentLimit   int            `json:"recent_limit" yaml:"recent_limit"`
}

// parseFile overlays cfg with the file named by -c/-config, if any.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.RemoteURL, fc.RemoteURL)
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.APIKey, fc.APIKey)
	setString(&cfg.AccessToken, fc.AccessToken)
	setString(&cfg.OwnerID, fc.OwnerID)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.RemoteTimeout.Duration != 0 {
		cfg.RemoteTimeout = fc.RemoteTimeout.Duration
	}
	if fc.RecentLimit != 0 {
		cfg.RecentLimit = fc.RecentLimit
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
