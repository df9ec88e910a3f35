// Package config loads the redwood host configuration from TOML.
//
//	[log]
//	level = "info"
//
//	[store]
//	path = "redwood.db"
//
//	[host]
//	version = "0.12.0"
//	mismatch = "log"
//	schema_dir = "schema"
//
//	[transport]
//	listen = ":8080"
//	path = "/redwood"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Mismatch policies.
const (
	MismatchThrow = "throw"
	MismatchLog   = "log"
)

// DefaultHostVersion is the protocol version a host announces when none is
// configured.
const DefaultHostVersion = "0.12.0"

// Config is the host configuration.
type Config struct {
	Log       Log       `toml:"log"`
	Store     Store     `toml:"store"`
	Host      Host      `toml:"host"`
	Transport Transport `toml:"transport"`

	// Dir is the directory containing the config file (set at load time).
	// Relative paths in the file resolve against it.
	Dir string `toml:"-"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Store configures the journal.
type Store struct {
	// Path is the SQLite journal. Empty disables journaling.
	Path string `toml:"path"`
}

// Host configures the applier.
type Host struct {
	Version   string `toml:"version"`
	Mismatch  string `toml:"mismatch"`
	SchemaDir string `toml:"schema_dir"`
}

// Transport configures the websocket endpoint.
type Transport struct {
	Listen string `toml:"listen"`
	Path   string `toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:       Log{Level: "info"},
		Host:      Host{Version: DefaultHostVersion, Mismatch: MismatchThrow, SchemaDir: "schema"},
		Transport: Transport{Listen: ":8080", Path: "/redwood"},
		Dir:       ".",
	}
}

// Load parses the file at path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := protocol.ParseVersion(c.Host.Version); err != nil {
		errs = append(errs, fmt.Errorf("host.version: %w", err))
	}
	switch c.Host.Mismatch {
	case MismatchThrow, MismatchLog:
	default:
		errs = append(errs, fmt.Errorf("host.mismatch: must be %q or %q, got %q", MismatchThrow, MismatchLog, c.Host.Mismatch))
	}
	if c.Transport.Path == "" || !strings.HasPrefix(c.Transport.Path, "/") {
		errs = append(errs, fmt.Errorf("transport.path: must start with /, got %q", c.Transport.Path))
	}
	return errors.Join(errs...)
}

// HostVersion returns the parsed host version. Call Validate first.
func (c *Config) HostVersion() protocol.RedwoodVersion {
	v, err := protocol.ParseVersion(c.Host.Version)
	if err != nil {
		return protocol.UnknownVersion
	}
	return v
}

// LogLevel returns the parsed log level, or Info if invalid.
func (c *Config) LogLevel() slog.Level {
	l, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Resolve returns p relative to the config file's directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
