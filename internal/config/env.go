package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/orcafacil/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultEnvFile = ".env"

// loadDotenv exports the variables of the dotenv file into the process
// environment without overriding variables that are already set. A missing
// default file is not an error; a missing -env file is.
func loadDotenv(args []string) error {
	path := flagx.EnvFileFlag(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays cfg with ORCAFACIL_* variables. Unset variables leave
// the current values alone.
func parseEnv(cfg *Config) error {
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}
