package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/logging"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "atomctl.yaml"

	// DefaultAddr is the default inspector listen address.
	DefaultAddr = "127.0.0.1:7070"

	// DefaultReadTimeout is the default inspector read timeout.
	DefaultReadTimeout = 10 * time.Second

	// DefaultIdleTimeout is how long unobserved atoms are kept by default.
	DefaultIdleTimeout = time.Second

	DefaultNamespace = "atom"
	DefaultSubsystem = "registry"
)

// Config is the complete atomctl.yaml configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Registry RegistryConfig `yaml:"registry"`
	Serve    ServeConfig    `yaml:"serve"`
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig names the registry's Prometheus metrics.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// RegistryConfig configures the atom registry.
type RegistryConfig struct {
	// IdleTimeout is how long unobserved derived atoms are kept before
	// they are dropped. Zero drops them immediately.
	IdleTimeout *Duration `yaml:"idleTimeout"`
}

// ServeConfig configures the inspector server.
type ServeConfig struct {
	Addr        string   `yaml:"addr"`
	ReadTimeout Duration `yaml:"readTimeout"`
}

// SnapshotConfig selects where snapshots are stored.
type SnapshotConfig struct {
	// Dir stores snapshots as JSON files.
	Dir string `yaml:"dir"`

	// S3 stores snapshots as objects.
	S3 S3Config `yaml:"s3"`
}

// S3Config configures the S3 snapshot backend.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// PathStyle addresses the bucket in the path, as MinIO expects.
	PathStyle bool `yaml:"pathStyle"`
}

// Enabled reports whether any snapshot backend is configured.
func (s SnapshotConfig) Enabled() bool {
	return s.Dir != "" || s.S3.Bucket != ""
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// New creates a Config with default values.
func New() *Config {
	idle := Duration(DefaultIdleTimeout)
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
			Subsystem: DefaultSubsystem,
		},
		Registry: RegistryConfig{
			IdleTimeout: &idle,
		},
		Serve: ServeConfig{
			Addr:        DefaultAddr,
			ReadTimeout: Duration(DefaultReadTimeout),
		},
	}
}

// Load loads atomctl.yaml from dir. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// LoadFile loads the config at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("A001").
			WithDetail("Could not read " + path).
			Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("A002").
			WithDetail("Failed to parse " + path).
			WithSuggestion("Check that the file is valid YAML and durations are strings such as \"500ms\"").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path the config was loaded from, if any.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory of the config file, or "" for defaults.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in values an explicit but partial file left empty.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = string(logging.FormatText)
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Subsystem == "" {
		c.Metrics.Subsystem = DefaultSubsystem
	}
	if c.Registry.IdleTimeout == nil {
		idle := Duration(DefaultIdleTimeout)
		c.Registry.IdleTimeout = &idle
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultAddr
	}
	if c.Serve.ReadTimeout == 0 {
		c.Serve.ReadTimeout = Duration(DefaultReadTimeout)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.New("A003").Wrap(err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.New("A003").Wrap(err)
	}

	if c.Snapshot.Dir != "" && c.Snapshot.S3.Bucket != "" {
		return errors.New("A004").
			WithSuggestion("Remove snapshot.dir or snapshot.s3")
	}

	if _, _, err := net.SplitHostPort(c.Serve.Addr); err != nil {
		return errors.New("A005").Wrap(err)
	}
	if c.Serve.ReadTimeout < 0 {
		return errors.New("A005").
			WithDetailf("serve.readTimeout is %s", c.Serve.ReadTimeout.Duration())
	}
	if c.Registry.IdleTimeout != nil && *c.Registry.IdleTimeout < 0 {
		return errors.Newf(errors.CategoryConfig, "registry.idleTimeout must not be negative")
	}
	return nil
}

// Logging returns the logger configuration, writing to out. Call it only
// on a validated config.
func (c *Config) Logging(out io.Writer) logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	format, _ := logging.ParseFormat(c.Log.Format)
	return logging.Config{Level: level, Format: format, Output: out}
}

// SnapshotDir returns snapshot.dir resolved against the config directory.
func (c *Config) SnapshotDir() string {
	dir := c.Snapshot.Dir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Dir(), dir)
}

// IdleTimeout returns registry.idleTimeout.
func (c *Config) IdleTimeout() time.Duration {
	if c.Registry.IdleTimeout == nil {
		return DefaultIdleTimeout
	}
	return c.Registry.IdleTimeout.Duration()
}
