package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/rawhttp/internal/middleware"
	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/telemetry"
)

// Config configures the server. Zero values are replaced by DefaultConfig
// values in New.
type Config struct {
	Addr      string `yaml:"addr"`
	Directory string `yaml:"directory"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	MaxLineBytes       int   `yaml:"max_line_bytes"`
	MaxHeaderBytes     int   `yaml:"max_header_bytes"`
	MaxHeaderLines     int   `yaml:"max_header_lines"`
	MaxRequestBodySize int64 `yaml:"max_body_bytes"`

	Log       LogConfig             `yaml:"log"`
	CORS      middleware.CORSConfig `yaml:"cors"`
	Telemetry telemetry.Config      `yaml:"telemetry"`
}

func DefaultConfig() Config {
	limits := request.DefaultLimits()
	return Config{
		Addr:               ":4221",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		MaxLineBytes:       limits.MaxLineBytes,
		MaxHeaderBytes:     limits.MaxHeaderBytes,
		MaxHeaderLines:     limits.MaxHeaderLines,
		MaxRequestBodySize: limits.MaxBodyBytes,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: telemetry.Config{
			ServiceName: "rawhttp",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.ReadTimeout < 0 {
		errs = append(errs, errors.New("read_timeout must not be negative"))
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, errors.New("write_timeout must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Limits returns the parser limits for this configuration.
func (c Config) Limits() request.Limits {
	return request.Limits{
		MaxLineBytes:   c.MaxLineBytes,
		MaxHeaderBytes: c.MaxHeaderBytes,
		MaxHeaderLines: c.MaxHeaderLines,
		MaxBodyBytes:   c.MaxRequestBodySize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
