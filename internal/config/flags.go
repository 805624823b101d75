package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/orcafacil/internal/flagx"
)

var knownFlags = []string{"-d", "-r", "-t", "-o", "-k", "-l", "-timeout"}

// parseFlags populates selected Config fields from command-line flags.
// Arguments other than knownFlags are dropped with flagx.FilterArgs first, so
// -c and -env are left to their own parsers.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("orcafacil", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path of the local database")
	fs.StringVar(&cfg.RemoteURL, "r", cfg.RemoteURL, "remote url or host:port")
	fs.StringVar(&cfg.Transport, "t", cfg.Transport, "transport: http or grpc")
	fs.StringVar(&cfg.OwnerID, "o", cfg.OwnerID, "owner id")
	fs.StringVar(&cfg.APIKey, "k", cfg.APIKey, "api key")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.RemoteTimeout, "timeout", cfg.RemoteTimeout, "remote call timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
