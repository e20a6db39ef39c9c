package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pavolctl/internal/domain"
)

// Config is the user-facing configuration of the client.
// Values are read from a YAML file, then environment, then command-line flags.
type Config struct {
	Command EndpointConfig `yaml:"command"`
	Status  StatusConfig   `yaml:"status"`
	Proxy   ProxyConfig    `yaml:"proxy"`
	Watch   WatchConfig    `yaml:"watch"`
	Web     WebConfig      `yaml:"web"`
	Logging LoggingConfig  `yaml:"logging"`
}

type EndpointConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StatusConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ProxyConfig struct {
	// SOCKS5 is host:port of a SOCKS5 proxy used for both channels. Empty dials directly.
	SOCKS5 string `yaml:"socks5,omitempty"`
}

type WatchConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	// DefaultCommandPort is the port of module-cli-protocol-tcp.
	DefaultCommandPort = 4712
	// DefaultStatusPort is the port of module-http-protocol-tcp.
	DefaultStatusPort = 4714
	// DefaultTimeout bounds one status fetch.
	DefaultTimeout = 5 * time.Second
	// DefaultWatchInterval is the polling period of watch and the websocket feed.
	DefaultWatchInterval = time.Second
)

// DefaultConfig returns a fully-populated Config.
func DefaultConfig() Config {
	return Config{
		Command: EndpointConfig{
			Host: "127.0.0.1",
			Port: DefaultCommandPort,
		},
		Status: StatusConfig{
			Host:      "127.0.0.1",
			Port:      DefaultStatusPort,
			TimeoutMS: int(DefaultTimeout / time.Millisecond),
		},
		Watch: WatchConfig{
			IntervalMS: int(DefaultWatchInterval / time.Millisecond),
		},
		Web: WebConfig{
			Addr: "127.0.0.1:7070",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
// A missing file is not an error and yields DefaultConfig.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(bytes.NewReader(b))
}

// Decode parses a YAML document on top of the defaults.
// Unknown fields and trailing documents are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// CommandEndpoint returns the endpoint of the command channel.
func (c Config) CommandEndpoint() domain.Endpoint {
	return domain.Endpoint{Host: c.Command.Host, Port: c.Command.Port}
}

// StatusEndpoint returns the endpoint of the HTTP status query.
func (c Config) StatusEndpoint() domain.Endpoint {
	return domain.Endpoint{Host: c.Status.Host, Port: c.Status.Port}
}

// Timeout returns the status fetch timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Status.TimeoutMS) * time.Millisecond
}

// WatchInterval returns the polling period.
func (c Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalMS) * time.Millisecond
}

// FlagOverrides carries command-line values. Nil pointers are ignored;
// non-nil ones are applied even when they hold a zero value.
type FlagOverrides struct {
	CommandHost *string
	CommandPort *int
	StatusHost  *string
	StatusPort  *int
	Timeout     *time.Duration
	Interval    *time.Duration
	SOCKS5      *string
	WebAddr     *string
	LogLevel    *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.CommandHost != nil {
		cfg.Command.Host = *o.CommandHost
	}
	if o.CommandPort != nil {
		cfg.Command.Port = *o.CommandPort
	}
	if o.StatusHost != nil {
		cfg.Status.Host = *o.StatusHost
	}
	if o.StatusPort != nil {
		cfg.Status.Port = *o.StatusPort
	}
	if o.Timeout != nil {
		cfg.Status.TimeoutMS = int(*o.Timeout / time.Millisecond)
	}
	if o.Interval != nil {
		cfg.Watch.IntervalMS = int(*o.Interval / time.Millisecond)
	}
	if o.SOCKS5 != nil {
		cfg.Proxy.SOCKS5 = *o.SOCKS5
	}
	if o.WebAddr != nil {
		cfg.Web.Addr = *o.WebAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}
