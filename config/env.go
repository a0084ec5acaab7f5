package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ECAM_"

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// EnvString returns the trimmed value of an environment variable.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses a Go duration environment variable.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays ECAM_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString(EnvPrefix + "BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvString(EnvPrefix + "OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := EnvString(EnvPrefix + "USER_AGENT"); ok {
		c.UserAgent = v
	}
	if v, ok := EnvString(EnvPrefix + "METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok, err := EnvInt(EnvPrefix + "MAX_CONCURRENT"); err != nil {
		return err
	} else if ok {
		c.MaxConcurrent = v
	}
	if v, ok, err := EnvBool(EnvPrefix + "FORCE"); err != nil {
		return err
	} else if ok {
		c.Force = v
	}
	if v, ok, err := EnvDuration(EnvPrefix + "DELAY"); err != nil {
		return err
	} else if ok {
		c.DispatchDelay = v
	}
	if v, ok, err := EnvDuration(EnvPrefix + "TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = v
	}
	if v, ok, err := EnvInt(EnvPrefix + "BANDWIDTH_LIMIT"); err != nil {
		return err
	} else if ok {
		c.BandwidthLimit = int64(v)
	}
	return nil
}
