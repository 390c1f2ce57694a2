package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/propconv"
)

const (
	TransportIPC = "ipc"
	TransportX11 = "x11"
)

// IPCConfig configures the websocket transport.
type IPCConfig struct {
	// Endpoint is a unix socket path or a ws:// URL. Empty means the
	// default runtime socket.
	Endpoint      string `yaml:"endpoint,omitempty"`
	TokenSecret   string `yaml:"token_secret,omitempty"`
	DialTimeoutMS int    `yaml:"dial_timeout_ms"`
}

func (c IPCConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// X11Config configures the X11 transport.
type X11Config struct {
	Display       string `yaml:"display,omitempty"`
	SnapshotDepth int    `yaml:"snapshot_depth"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ReconcilerConfig controls the stale-change sweep.
type ReconcilerConfig struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	StaleAfterSeconds int `yaml:"stale_after_seconds"`
}

func (c ReconcilerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c ReconcilerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// AuthorityConfig configures `treemirror serve`.
type AuthorityConfig struct {
	Listen        string   `yaml:"listen,omitempty"`
	DisplayWidth  int      `yaml:"display_width"`
	DisplayHeight int      `yaml:"display_height"`
	RejectOps     []string `yaml:"reject_ops,omitempty"`
}

// Config is the effective configuration.
type Config struct {
	Transport  string            `yaml:"transport"`
	IPC        IPCConfig         `yaml:"ipc"`
	X11        X11Config         `yaml:"x11"`
	Log        LogConfig         `yaml:"log"`
	Reconciler ReconcilerConfig  `yaml:"reconciler"`
	Properties map[string]string `yaml:"properties"`
	Authority  AuthorityConfig   `yaml:"authority"`
}

func DefaultConfig() *Config {
	return &Config{
		Transport: TransportIPC,
		IPC: IPCConfig{
			DialTimeoutMS: 5000,
		},
		X11: X11Config{
			SnapshotDepth: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Reconciler: ReconcilerConfig{
			IntervalSeconds:   5,
			StaleAfterSeconds: 30,
		},
		Properties: map[string]string{
			"title": string(propconv.TypeString),
		},
		Authority: AuthorityConfig{
			DisplayWidth:  1920,
			DisplayHeight: 1080,
		},
	}
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "treemirror", "config.yaml"), nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportIPC, TransportX11:
	default:
		return &ValidationError{Path: "transport", Err: fmt.Errorf("transport must be one of: ipc, x11")}
	}
	if c.IPC.DialTimeoutMS < 0 {
		return &ValidationError{Path: "ipc.dial_timeout_ms", Err: fmt.Errorf("dial_timeout_ms must be >= 0")}
	}
	if ep := c.IPC.Endpoint; strings.Contains(ep, "://") && !strings.HasPrefix(ep, "ws://") && !strings.HasPrefix(ep, "wss://") {
		return &ValidationError{Path: "ipc.endpoint", Err: fmt.Errorf("endpoint must be a socket path or a ws:// or wss:// URL")}
	}
	if c.X11.SnapshotDepth < 0 {
		return &ValidationError{Path: "x11.snapshot_depth", Err: fmt.Errorf("snapshot_depth must be >= 0")}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return &ValidationError{Path: "log.level", Err: err}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &ValidationError{Path: "log.format", Err: fmt.Errorf("format must be one of: text, json")}
	}
	if c.Reconciler.IntervalSeconds <= 0 {
		return &ValidationError{Path: "reconciler.interval_seconds", Err: fmt.Errorf("interval_seconds must be > 0")}
	}
	if c.Reconciler.StaleAfterSeconds <= 0 {
		return &ValidationError{Path: "reconciler.stale_after_seconds", Err: fmt.Errorf("stale_after_seconds must be > 0")}
	}
	if c.Properties == nil {
		return &ValidationError{Path: "properties", Err: fmt.Errorf("properties must not be null")}
	}
	for name, t := range c.Properties {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Path: "properties", Err: fmt.Errorf("properties contains an empty name")}
		}
		if !propconv.Type(t).Valid() {
			return &ValidationError{Path: "properties." + name, Err: fmt.Errorf("type must be one of: string, bool, int64, float64, bytes")}
		}
	}
	if c.Authority.DisplayWidth <= 0 || c.Authority.DisplayHeight <= 0 {
		return &ValidationError{Path: "authority", Err: fmt.Errorf("display_width and display_height must be > 0")}
	}
	for _, op := range c.Authority.RejectOps {
		if !platform.Op(op).Valid() {
			return &ValidationError{Path: "authority.reject_ops", Err: fmt.Errorf("unknown operation %q", op)}
		}
	}
	return nil
}

// SlogLevel maps the configured level onto slog.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	switch c.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("level must be one of: debug, info, warn, error")
}

// Ops returns the fault-injection list as operations.
func (c AuthorityConfig) Ops() []platform.Op {
	ops := make([]platform.Op, 0, len(c.RejectOps))
	for _, op := range c.RejectOps {
		ops = append(ops, platform.Op(op))
	}
	return ops
}

// Marshal renders the effective config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to path, creating its directory.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
