// Package config loads greeny's configuration. Sources are layered from
// lowest to highest precedence: defaults, greeny.yaml (or --config), GREENY_*
// environment variables, then explicitly set command-line flags. A .env file
// in the working directory is loaded into the environment first.
package config

import (
	"strings"
	"time"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/filestore"
	"github.com/koustreak/greeny/internal/llm"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/pipeline"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	LLM      LLMConfig      `koanf:"llm"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Archive  ArchiveConfig  `koanf:"archive"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	Migrate         bool          `koanf:"migrate"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
}

type PipelineConfig struct {
	TopK           int           `koanf:"top_k"`
	EnforceLimit   bool          `koanf:"enforce_limit"`
	ReadOnlyGuard  bool          `koanf:"read_only_guard"`
	MaxResultRows  int           `koanf:"max_result_rows"`
	SchemaCacheTTL time.Duration `koanf:"schema_cache_ttl"`
	Tables         []string      `koanf:"tables"`
	ChartPolicy    string        `koanf:"chart_policy"`
}

type ArchiveConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaults is the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8000",
		"server.request_timeout":  "120s",
		"server.shutdown_timeout": "15s",
		"server.cors_origins":     []string{"*"},
		"server.migrate":          false,

		"database.driver":             "postgres",
		"database.dsn":                "",
		"database.max_conns":          10,
		"database.min_conns":          2,
		"database.max_conn_lifetime":  "30m",
		"database.max_conn_idle_time": "5m",
		"database.connect_timeout":    "10s",
		"database.query_timeout":      "30s",

		"llm.provider":    "anthropic",
		"llm.model":       "",
		"llm.max_tokens":  1024,
		"llm.temperature": 0.0,
		"llm.timeout":     "60s",
		"llm.max_retries": 1,

		"pipeline.top_k":            pipeline.DefaultTopK,
		"pipeline.enforce_limit":    false,
		"pipeline.read_only_guard":  true,
		"pipeline.max_result_rows":  50,
		"pipeline.schema_cache_ttl": "0s",
		"pipeline.chart_policy":     string(pipeline.ChartAdvisory),

		"archive.enabled": false,
		"archive.bucket":  "greeny",
		"archive.prefix":  "answers",

		"log.level":  "info",
		"log.format": "console",
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := database.ParseDriver(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
		return errs.New(errs.ErrKindInvalidInput, "database pool sizes must not be negative")
	}
	if c.Database.QueryTimeout < 0 || c.LLM.Timeout < 0 || c.Server.RequestTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, "timeouts must not be negative")
	}
	if _, err := llm.ParseProvider(c.LLM.Provider); err != nil {
		return err
	}
	if c.LLM.MaxRetries < 0 {
		return errs.New(errs.ErrKindInvalidInput, "llm.max_retries must not be negative")
	}
	if c.Pipeline.TopK <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "pipeline.top_k must be positive")
	}
	if c.Pipeline.MaxResultRows < 0 {
		return errs.New(errs.ErrKindInvalidInput, "pipeline.max_result_rows must not be negative")
	}
	if c.Pipeline.SchemaCacheTTL < 0 {
		return errs.New(errs.ErrKindInvalidInput, "pipeline.schema_cache_ttl must not be negative")
	}
	if _, err := pipeline.ParseChartPolicy(c.Pipeline.ChartPolicy); err != nil {
		return err
	}
	if c.Archive.Enabled {
		if err := c.FilestoreConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DatabaseConfig builds and validates the driver config. Only commands that
// open the store call it, so a missing DSN fails there and not in Load.
func (c *Config) DatabaseConfig() (*database.Config, error) {
	driver, err := database.ParseDriver(c.Database.Driver)
	if err != nil {
		return nil, err
	}
	dc := database.DefaultConfig(c.Database.DSN)
	dc.Driver = driver
	if c.Database.MaxConns > 0 {
		dc.MaxConns = int32(c.Database.MaxConns)
	}
	if c.Database.MinConns > 0 {
		dc.MinConns = int32(c.Database.MinConns)
	}
	if c.Database.MaxConnLifetime > 0 {
		dc.MaxConnLifetime = c.Database.MaxConnLifetime
	}
	if c.Database.MaxConnIdleTime > 0 {
		dc.MaxConnIdleTime = c.Database.MaxConnIdleTime
	}
	if c.Database.ConnectTimeout > 0 {
		dc.ConnectTimeout = c.Database.ConnectTimeout
	}
	dc.QueryTimeout = c.Database.QueryTimeout
	return dc, dc.Validate()
}

// LLMConfig builds the provider config.
func (c *Config) LLMConfig() (llm.Config, error) {
	p, err := llm.ParseProvider(c.LLM.Provider)
	if err != nil {
		return llm.Config{}, err
	}
	return llm.Config{
		Provider:    p,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
		MaxRetries:  c.LLM.MaxRetries,
	}, nil
}

// LoggerConfig builds the logger config.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = strings.ToLower(c.Log.Level)
	if c.Log.Format != "" {
		lc.Format = strings.ToLower(c.Log.Format)
	}
	return lc
}

// FilestoreConfig builds the transcript archive store config.
func (c *Config) FilestoreConfig() *filestore.Config {
	fc := filestore.DefaultConfig(c.Archive.Endpoint, c.Archive.AccessKey, c.Archive.SecretKey)
	fc.UseSSL = c.Archive.UseSSL
	fc.Region = c.Archive.Region
	if c.Archive.Bucket != "" {
		fc.Bucket = c.Archive.Bucket
	}
	return fc
}
