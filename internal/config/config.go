// Package config loads the runtime configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration. Zero values are replaced
// by the defaults from Default.
type Config struct {
	MaxCallDepth    int  `yaml:"max_call_depth"`
	CompatFallbacks bool `yaml:"compat_fallbacks"`
	DebugBuiltins   bool `yaml:"debug_builtins"`

	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, console or json
}

// StoreConfig selects the database used for global snapshots. An empty
// driver disables the store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error", "disabled"}
	logFormats = []string{"auto", "console", "json"}
	drivers    = []string{"", "sqlite", "sqlite3", "postgres", "mysql", "sqlserver"}
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MaxCallDepth: 200,
		Log: LogConfig{
			Level:  "warn",
			Format: "auto",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:7070",
			MaxMessageBytes: 1 << 20,
		},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults unchanged; so does an empty file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "config")
	}
	defer f.Close()

	if err := cfg.decode(f); err != nil {
		return nil, pkgerrors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Parse reads a configuration document from a string over the defaults.
func Parse(doc string) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(strings.NewReader(doc)); err != nil {
		return nil, pkgerrors.Wrap(err, "config")
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	c.fill()
	return c.Validate()
}

// fill restores defaults for fields a document set to their zero value.
func (c *Config) fill() {
	def := Default()
	if c.MaxCallDepth == 0 {
		c.MaxCallDepth = def.MaxCallDepth
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = def.Server.MaxMessageBytes
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.MaxCallDepth < 1:
		return fmt.Errorf("max_call_depth must be positive, got %d", c.MaxCallDepth)
	case !oneOf(c.Log.Level, logLevels):
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	case !oneOf(c.Log.Format, logFormats):
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	case !oneOf(c.Store.Driver, drivers):
		return fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver)
	case c.Store.Driver != "" && c.Store.DSN == "":
		return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
	case c.Server.MaxMessageBytes < 0:
		return fmt.Errorf("server.max_message_bytes must not be negative")
	}
	return nil
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
