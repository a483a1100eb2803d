// Package config resolves fraudboard settings from command-line flags, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/docopt/docopt.go"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/aqilqeka/Aqil-project/loader"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FRAUDBOARD_"

// DefaultEnvFile is read by Load when present.
const DefaultEnvFile = ".env"

type Config struct {
	// HTTP dashboard
	Addr            string
	DefaultRows     int
	RenderCacheSize int

	// Arrow Flight
	FlightAddr string

	// Dataset
	Source             string
	CacheDir           string
	GCSCredentialsFile string

	LogLevel string
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		DefaultRows:     100000,
		RenderCacheSize: 256,
		FlightAddr:      ":8815",
		Source:          loader.DefaultSource,
		CacheDir:        "data",
		LogLevel:        "info",
	}
}

// setting binds a configuration field to its environment key and flag.
type setting struct {
	env  string
	flag string
	str  *string
	num  *int
}

func (c *Config) settings() []setting {
	return []setting{
		{env: "ADDR", flag: "--addr", str: &c.Addr},
		{env: "DEFAULT_ROWS", flag: "--rows", num: &c.DefaultRows},
		{env: "RENDER_CACHE_SIZE", num: &c.RenderCacheSize},
		{env: "FLIGHT_ADDR", flag: "--flight-addr", str: &c.FlightAddr},
		{env: "SOURCE", flag: "--source", str: &c.Source},
		{env: "CACHE_DIR", flag: "--cache-dir", str: &c.CacheDir},
		{env: "GCS_CREDENTIALS_FILE", str: &c.GCSCredentialsFile},
		{env: "LOG_LEVEL", flag: "--log-level", str: &c.LogLevel},
	}
}

// Load resolves the configuration. Precedence, highest first: flags in
// args, process environment, envFile (DefaultEnvFile when empty), defaults.
// A missing env file is not an error.
func Load(args docopt.Opts, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}

	cfg := Defaults()
	var errs []error
	for _, s := range cfg.settings() {
		key := EnvPrefix + s.env
		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			value, ok = dotenv[key]
		}
		if s.flag != "" {
			if v, err := args.String(s.flag); err == nil && v != "" {
				value, ok = v, true
			}
		}
		if !ok || value == "" {
			continue
		}
		if s.str != nil {
			*s.str = value
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, value))
			continue
		}
		*s.num = n
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error naming every
// problem found.
func (c *Config) Validate() error {
	var problems []string

	for _, a := range []struct{ name, addr string }{{"addr", c.Addr}, {"flight addr", c.FlightAddr}} {
		if _, _, err := net.SplitHostPort(a.addr); err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s '%s': %v", a.name, a.addr, err))
		}
	}
	if c.Addr != "" && c.Addr == c.FlightAddr {
		problems = append(problems, fmt.Sprintf("addr and flight addr must differ, both are '%s'", c.Addr))
	}
	if strings.TrimSpace(c.Source) == "" {
		problems = append(problems, "dataset source cannot be empty")
	}
	if c.DefaultRows < 1 {
		problems = append(problems, fmt.Sprintf("invalid default rows %d: must be at least 1", c.DefaultRows))
	}
	if c.RenderCacheSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid render cache size %d: must be at least 1", c.RenderCacheSize))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.GCSCredentialsFile != "" {
		if _, err := os.Stat(c.GCSCredentialsFile); err != nil {
			problems = append(problems, fmt.Sprintf("GCS credentials file does not exist: %s", c.GCSCredentialsFile))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Loader returns the dataset loader settings.
func (c *Config) Loader() loader.Config {
	return loader.Config{
		Source:             c.Source,
		CacheDir:           c.CacheDir,
		GCSCredentialsFile: c.GCSCredentialsFile,
	}
}
