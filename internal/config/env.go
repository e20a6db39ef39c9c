package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAVOLCTL_"

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(ExpandPath(path)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv applies PAVOLCTL_* variables looked up through getenv onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if cfg == nil {
		return nil
	}
	if getenv == nil {
		getenv = os.Getenv
	}

	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("COMMAND_HOST", &cfg.Command.Host)
	str("STATUS_HOST", &cfg.Status.Host)
	str("SOCKS5", &cfg.Proxy.SOCKS5)
	str("WEB_ADDR", &cfg.Web.Addr)
	str("LOG_LEVEL", &cfg.Logging.Level)

	for key, dst := range map[string]*int{
		"COMMAND_PORT":      &cfg.Command.Port,
		"STATUS_PORT":       &cfg.Status.Port,
		"STATUS_TIMEOUT_MS": &cfg.Status.TimeoutMS,
		"WATCH_INTERVAL_MS": &cfg.Watch.IntervalMS,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}
