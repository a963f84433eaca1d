package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort    = 5000
	DefaultContentRoot = "."
	DefaultStaticDir   = "wwwroot"
	DefaultWatchDir    = "Pages"
	DefaultFilter      = ".cshtml"
	DefaultHubPath     = "/razorpagenotifierhub"
	DefaultScriptPath  = "/pagewatch.js"
	DefaultMetricsPath = "/metrics"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
)

// Config is the full configuration tree parsed from the YAML file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the host HTTP server settings.
type ServerConfig struct {
	// HTTPPort is the port the host server listens on (default 5000).
	HTTPPort int `yaml:"http_port"`

	// ContentRoot is the application root; relative watch and static
	// directories are resolved against it.
	ContentRoot string `yaml:"content_root"`

	// StaticDir is served at "/" when it exists. Leave empty to disable.
	StaticDir string `yaml:"static_dir"`
}

// WatchConfig describes the single watch registration and the live-update
// endpoints exposed to browsers.
type WatchConfig struct {
	// Dir is the directory watched recursively (default "Pages").
	Dir string `yaml:"dir"`

	// Filter is the filename suffix that qualifies a change, e.g. ".cshtml".
	Filter string `yaml:"filter"`

	// HubPath is where the WebSocket hub is mounted.
	HubPath string `yaml:"hub_path"`

	// ScriptPath is where the browser client script is served.
	ScriptPath string `yaml:"script_path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`

	// File, when set, additionally writes logs to a size-rotated file.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchRoot returns the directory to watch: Watch.Dir joined onto
// Server.ContentRoot unless Watch.Dir is already absolute.
func (c *Config) WatchRoot() string {
	return resolve(c.Server.ContentRoot, c.Watch.Dir)
}

// StaticRoot returns the static file directory, or "" when disabled.
func (c *Config) StaticRoot() string {
	if c.Server.StaticDir == "" {
		return ""
	}
	return resolve(c.Server.ContentRoot, c.Server.StaticDir)
}

func resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// Load reads and parses the config file at path. An empty path yields the
// defaults. Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	return finish(cfg)
}

// Default returns the validated default configuration.
func Default() (*Config, error) {
	return finish(defaults())
}

func finish(cfg *Config) (*Config, error) {
	cfg.Watch.Filter = NormalizeFilter(cfg.Watch.Filter)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// NormalizeFilter strips a leading glob star so "*.cshtml" and ".cshtml"
// select the same files.
func NormalizeFilter(filter string) string {
	return strings.TrimPrefix(strings.TrimSpace(filter), "*")
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    DefaultHTTPPort,
			ContentRoot: DefaultContentRoot,
			StaticDir:   DefaultStaticDir,
		},
		Watch: WatchConfig{
			Dir:        DefaultWatchDir,
			Filter:     DefaultFilter,
			HubPath:    DefaultHubPath,
			ScriptPath: DefaultScriptPath,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
// The watch directory itself is not checked here; a missing directory only
// disables live reload.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Watch.Dir == "" {
		return fmt.Errorf("watch.dir is required")
	}
	if cfg.Watch.Filter == "" {
		return fmt.Errorf("watch.filter is required")
	}
	if strings.ContainsAny(cfg.Watch.Filter, "*?[/") {
		return fmt.Errorf("watch.filter %q must be a plain suffix such as .cshtml", cfg.Watch.Filter)
	}
	if !strings.HasPrefix(cfg.Watch.HubPath, "/") {
		return fmt.Errorf("watch.hub_path %q must start with /", cfg.Watch.HubPath)
	}
	if !strings.HasPrefix(cfg.Watch.ScriptPath, "/") {
		return fmt.Errorf("watch.script_path %q must start with /", cfg.Watch.ScriptPath)
	}
	if cfg.Watch.HubPath == cfg.Watch.ScriptPath {
		return fmt.Errorf("watch.hub_path and watch.script_path must differ")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", cfg.Metrics.Path)
	}
	return nil
}
