package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source kinds.
const (
	SourceHTTP       = "http"
	SourceCluster    = "cluster"
	SourceClickHouse = "clickhouse"
	SourceFile       = "file"
	SourceTail       = "tail"
)

// HTTPSourceConfig points at a dashboard-style REST backend.
type HTTPSourceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ScopePath  string        `mapstructure:"scope_path"`  // events of one scope, scope passed as job_id
	GlobalPath string        `mapstructure:"global_path"` // events of all scopes
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ClusterConfig lists REST backends queried in parallel.
type ClusterConfig struct {
	Nodes []string `mapstructure:"nodes"`
}

// ClickHouseConfig holds connection settings for the ClickHouse source.
type ClickHouseConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Table    string `mapstructure:"table"`
	Protocol string `mapstructure:"protocol"` // "native" or "http"
	Limit    int    `mapstructure:"limit"`
}

// FileConfig points at an .evsnap snapshot or a JSONL file.
type FileConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"` // refresh open views when the file changes
}

// TailConfig follows an append-only JSONL file.
type TailConfig struct {
	Path      string `mapstructure:"path"`
	Retention int    `mapstructure:"retention"` // max events kept in memory
}

// SourceConfig selects and configures the data-fetch collaborator.
type SourceConfig struct {
	Kind       string           `mapstructure:"kind"`
	HTTP       HTTPSourceConfig `mapstructure:"http"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	File       FileConfig       `mapstructure:"file"`
	Tail       TailConfig       `mapstructure:"tail"`
}

// AuthConfig protects the view API. An empty hash disables auth.
type AuthConfig struct {
	TokenHash string `mapstructure:"token_hash"` // bcrypt hash of the bearer token
}

// LoggingConfig holds logger settings and the Sentry integration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"` // receives Error+ only
	JSON      bool   `mapstructure:"json"`
	SentryDSN string `mapstructure:"sentry_dsn"` // empty disables Sentry
}

// Config describes the service settings.
type Config struct {
	Listen          string        `mapstructure:"listen"`
	PageSize        int           `mapstructure:"page_size"`
	DefaultSeverity []string      `mapstructure:"default_severity"`
	Timezone        string        `mapstructure:"timezone"` // IANA name, empty for local
	ViewIdleTimeout time.Duration `mapstructure:"view_idle_timeout"`
	NodeMapFile     string        `mapstructure:"node_map_file"` // optional JSON node lookup table

	Auth    AuthConfig    `mapstructure:"auth"`
	Source  SourceConfig  `mapstructure:"source"`
	Logging LoggingConfig `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8089")
	v.SetDefault("page_size", 10)
	v.SetDefault("view_idle_timeout", 30*time.Minute)
	v.SetDefault("source.kind", SourceHTTP)
	v.SetDefault("source.http.base_url", "http://localhost:8265")
	v.SetDefault("source.http.scope_path", "/events")
	v.SetDefault("source.http.global_path", "/events")
	v.SetDefault("source.http.timeout", 10*time.Second)
	v.SetDefault("source.clickhouse.database", "default")
	v.SetDefault("source.clickhouse.table", "events")
	v.SetDefault("source.clickhouse.protocol", "native")
	v.SetDefault("source.clickhouse.limit", 10000)
	v.SetDefault("source.tail.retention", 10000)
	v.SetDefault("logging.level", "info")

	// Keys without a meaningful default are registered so that
	// AutomaticEnv values reach Unmarshal.
	for _, key := range []string{
		"timezone", "node_map_file", "auth.token_hash",
		"source.clickhouse.address", "source.clickhouse.username", "source.clickhouse.password",
		"source.file.path", "source.tail.path",
		"logging.file", "logging.sentry_dsn",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("default_severity", []string{})
	v.SetDefault("source.cluster.nodes", []string{})
	v.SetDefault("source.file.watch", false)
	v.SetDefault("logging.json", false)
}

// Load resolves the configuration from, in order of precedence, command-line
// flags, EVENTDECK_* environment variables (a .env file is loaded first),
// the YAML config file and defaults.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("eventdeck", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.String("listen", "", "HTTP listen address")
	fs.Int("page-size", 0, "default page size for new views")
	fs.String("source", "", "event source: http, cluster, clickhouse, file, tail")
	fs.String("log-level", "", "console log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for key, flag := range map[string]string{
		"listen":        "listen",
		"page_size":     "page-size",
		"source.kind":   "source",
		"logging.level": "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix("EVENTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := *configPath
	if path == "" {
		path = os.Getenv("EVENTDECK_CONFIG")
	}
	if path != "" {
		if err := readConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// readConfigFile feeds a sanitized copy of the file to viper.
func readConfigFile(v *viper.Viper, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "yaml"
	}
	v.SetConfigType(ext)
	if err := v.ReadConfig(bytes.NewReader(sanitize(raw))); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// sanitize strips a UTF-8 BOM and replaces tabs, which YAML rejects.
func sanitize(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
}

// Location resolves Timezone; an empty name means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.ViewIdleTimeout <= 0 {
		return fmt.Errorf("view_idle_timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	s := c.Source
	switch s.Kind {
	case SourceHTTP:
		if s.HTTP.BaseURL == "" {
			return fmt.Errorf("source.http.base_url must not be empty")
		}
	case SourceCluster:
		if len(s.Cluster.Nodes) == 0 {
			return fmt.Errorf("source.cluster.nodes must not be empty")
		}
	case SourceClickHouse:
		if s.ClickHouse.Address == "" {
			return fmt.Errorf("source.clickhouse.address must not be empty")
		}
		if s.ClickHouse.Table == "" {
			return fmt.Errorf("source.clickhouse.table must not be empty")
		}
	case SourceFile:
		if s.File.Path == "" {
			return fmt.Errorf("source.file.path must not be empty")
		}
	case SourceTail:
		if s.Tail.Path == "" {
			return fmt.Errorf("source.tail.path must not be empty")
		}
		if s.Tail.Retention <= 0 {
			return fmt.Errorf("source.tail.retention must be positive")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", s.Kind)
	}
	return nil
}
