// Package config loads runtime configuration for the orcafacil sync runner.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or -config; the format
//     follows the file extension (.yaml/.yml, anything else is JSON).
//  3. Environment variables prefixed with ORCAFACIL_. A dotenv file (.env in
//     the working directory, or the -env path) is exported first and never
//     overrides variables that are already set.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-d string      path of the local SQLite database
//	-r string      remote URL (http transport) or host:port (grpc transport)
//	-t string      transport: http or grpc
//	-o string      owner id; derived from the access token when empty
//	-k string      api key sent with every remote call
//	-l string      log level: debug, info, warn, error
//	-timeout dur   per-call remote timeout, e.g. 15s
//
// # File schema
//
// Durations are timex.Duration, so they may be strings like "15s" or integer
// nanoseconds:
//
//	db_path: orcafacil.db
//	remote_url: https://api.example.com
//	transport: http
//	remote_timeout: 15s
//	log_level: info
package config
