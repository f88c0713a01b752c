package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads an optional .env file into the process environment. A
// missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// EnvString returns the named variable and whether it was set.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	return value, ok
}

// EnvInt parses the named variable as an integer. The second return value
// reports whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s=%q: %w", name, raw, err)
	}
	return value, true, nil
}

// FromEnv overlays DISCOVERY_* environment variables onto cfg.
func (c *Config) FromEnv() error {
	if value, ok, err := EnvInt("DISCOVERY_MAX_REQUESTS_PER_MINUTE"); err != nil {
		return err
	} else if ok {
		c.MaxRequestsPerMinute = value
	}
	if value, ok, err := EnvInt("DISCOVERY_MAX_CONCURRENT_JOBS"); err != nil {
		return err
	} else if ok {
		c.MaxConcurrentJobs = value
	}
	if value, ok, err := EnvInt("DISCOVERY_MAX_PAGES"); err != nil {
		return err
	} else if ok {
		c.MaxPages = value
	}
	if value, ok, err := EnvInt("DISCOVERY_MAX_DEPTH"); err != nil {
		return err
	} else if ok {
		c.MaxDepth = value
	}
	if value, ok, err := EnvInt("DISCOVERY_TIMEOUT_SECONDS"); err != nil {
		return err
	} else if ok {
		c.Timeout = time.Duration(value) * time.Second
	}
	if value, ok := EnvString("DISCOVERY_OUTPUT"); ok {
		c.OutputFile = value
	}
	if value, ok := EnvString("DISCOVERY_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	return nil
}
