package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"pavolctl/internal/logging"
)

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file, environment and flags are applied.
func (c Config) Validate() error {
	if err := c.CommandEndpoint().Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	if err := c.StatusEndpoint().Validate(); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if c.Status.TimeoutMS <= 0 {
		return errors.New("status.timeout_ms must be > 0")
	}
	if c.WatchInterval() < 100*time.Millisecond {
		return errors.New("watch.interval_ms must be >= 100")
	}
	if c.Proxy.SOCKS5 != "" {
		if _, _, err := net.SplitHostPort(c.Proxy.SOCKS5); err != nil {
			return fmt.Errorf("proxy.socks5: %w", err)
		}
	}
	if c.Web.Addr == "" {
		return errors.New("web.addr must not be empty")
	}
	if _, _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
