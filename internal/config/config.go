package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/datatable/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "datatable.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "datatable.yaml"

	// DefaultTable is the default Postgres table for preferences.
	DefaultTable = "datatable_preferences"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "datatable"
)

// Backend names a preference storage implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendPostgres Backend = "postgres"
	BackendS3       Backend = "s3"
	BackendHTTP     Backend = "http"
)

// Config represents the complete engine configuration.
type Config struct {
	// Storage selects where preferences are persisted.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Log configures the slog handler.
	Log LogConfig `json:"log" yaml:"log"`

	// Metrics configures Prometheus collectors.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig selects and configures a preference backend.
type StorageConfig struct {
	// Backend is one of memory, file, postgres, s3, http. Default: memory.
	Backend Backend `json:"backend" yaml:"backend"`

	// Prefix is prepended to every preference key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Dir is the directory for the file backend.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// DSN is the connection string for the postgres backend.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// Table is the postgres table name. Default: datatable_preferences.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	// Bucket and Region configure the s3 backend.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// URL is the base URL of a preference HTTP service for the http backend.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json. Default: text.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Subsystem string `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendMemory,
			Table:   DefaultTable,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// datatable.json first, then datatable.yaml.
func Load(dir string) (*Config, error) {
	jsonPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return LoadFile(jsonPath)
	}
	yamlPath := filepath.Join(dir, YAMLConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return LoadFile(yamlPath)
	}
	return nil, errors.New("DT030").
		WithSubject(dir).
		WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir)
}

// LoadFile reads configuration from the specified file path. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON with comments.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("DT030").WithSubject(path).Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("DT030").
				WithSubject(path).
				WithSuggestion("Check that the file is valid YAML").
				Wrap(err)
		}
	default:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, errors.New("DT030").
				WithSubject(path).
				WithSuggestion("Check that the file is valid JSON (comments and trailing commas are allowed)").
				Wrap(err)
		}
		if err := json.Unmarshal(standardized, cfg); err != nil {
			return nil, errors.New("DT030").WithSubject(path).Wrap(err)
		}
	}

	cfg.configPath = path
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyEnv overlays DATATABLE_* variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, name string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	backend := string(c.Storage.Backend)
	set(&backend, "DATATABLE_STORAGE_BACKEND")
	c.Storage.Backend = Backend(backend)
	set(&c.Storage.DSN, "DATATABLE_STORAGE_DSN")
	set(&c.Storage.Dir, "DATATABLE_STORAGE_DIR")
	set(&c.Storage.Bucket, "DATATABLE_STORAGE_BUCKET")
	set(&c.Storage.URL, "DATATABLE_STORAGE_URL")
	set(&c.Log.Level, "DATATABLE_LOG_LEVEL")
	set(&c.Log.Format, "DATATABLE_LOG_FORMAT")
}

// applyDefaults fills in values left empty by the file.
func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.Table == "" {
		c.Storage.Table = DefaultTable
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Storage.Backend == BackendFile && c.Storage.Dir != "" && !filepath.IsAbs(c.Storage.Dir) && c.configPath != "" {
		c.Storage.Dir = filepath.Join(filepath.Dir(c.configPath), c.Storage.Dir)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(detail string) error {
		return errors.New("DT031").WithSubject(c.configPath).WithDetail(detail)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Dir == "" {
			return invalid("storage.dir is required for the file backend")
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return invalid("storage.dsn is required for the postgres backend")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return invalid("storage.bucket is required for the s3 backend")
		}
	case BackendHTTP:
		if c.Storage.URL == "" {
			return invalid("storage.url is required for the http backend")
		}
	default:
		return invalid("unknown storage.backend " + string(c.Storage.Backend))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log.format must be text or json")
	}
	return nil
}

// Logger builds a slog.Logger writing to w according to the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	var handler slog.Handler
	if strings.ToLower(c.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
