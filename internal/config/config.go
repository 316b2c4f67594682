package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset" mapstructure:"dataset"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Bins     BinsConfig     `yaml:"bins" mapstructure:"bins"`
	Map      MapConfig      `yaml:"map" mapstructure:"map"`
	Palette  PaletteConfig  `yaml:"palette" mapstructure:"palette"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates the binned district dataset.
type DatasetConfig struct {
	// Source is a local path, an http(s):// URL or an ftp:// URL.
	Source   string `yaml:"source" mapstructure:"source"`
	Format   string `yaml:"format" mapstructure:"format"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`
}

// BoundaryConfig selects the per-bin geometry provider.
type BoundaryConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Table    string `yaml:"table" mapstructure:"table"`
}

// CacheConfig configures the geometry cache layers, outermost first.
type CacheConfig struct {
	Layers     []string `yaml:"layers" mapstructure:"layers"`
	MaxEntries int      `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int      `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	SQLitePath string   `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// FetchConfig configures per-bin geometry fetching.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	OnError     string `yaml:"on_error" mapstructure:"on_error"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// BinsConfig configures bin ordering.
type BinsConfig struct {
	Order string `yaml:"order" mapstructure:"order"`
}

// MapConfig holds map rendering defaults.
type MapConfig struct {
	AccessToken string  `yaml:"access_token" mapstructure:"access_token"`
	Style       string  `yaml:"style" mapstructure:"style"`
	CenterLat   float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon   float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Zoom        float64 `yaml:"zoom" mapstructure:"zoom"`
}

// PaletteConfig points at optional named colorscale presets.
type PaletteConfig struct {
	PresetsFile string `yaml:"presets_file" mapstructure:"presets_file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SessionTTLMins int      `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
}

// DatabaseConfig configures the PostGIS boundary store.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// RedisConfig configures the shared geometry cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchTimeout returns the per-bin fetch timeout.
func (c FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TQGAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.source", "https://raw.githubusercontent.com/otteheng/Teacher-Quality-Gaps-Dash/master/Washington-Bins.csv")
	v.SetDefault("dataset.format", "")
	v.SetDefault("dataset.encoding", "")
	v.SetDefault("dataset.sheet", "")
	v.SetDefault("map.access_token", "")
	v.SetDefault("palette.presets_file", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("boundary.provider", "http")
	v.SetDefault("boundary.base_url", "https://raw.githubusercontent.com/otteheng/Teacher-Quality-Gaps-Dash/master")
	v.SetDefault("boundary.dir", "./geo")
	v.SetDefault("boundary.table", "tqgap.boundaries")
	v.SetDefault("cache.layers", []string{"memory"})
	v.SetDefault("cache.max_entries", 512)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.sqlite_path", "tqgap-cache.db")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.on_error", "skip")
	v.SetDefault("fetch.user_agent", "tqgap/1.0")
	v.SetDefault("bins.order", "lexical")
	v.SetDefault("map.style", "light")
	v.SetDefault("map.center_lat", 47.5)
	v.SetDefault("map.center_lon", -120.0)
	v.SetDefault("map.zoom", 5.9)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_ttl_mins", 120)
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a given command depends on.
func (c *Config) Validate(command string) error {
	var errs []string

	if c.Dataset.Source == "" {
		errs = append(errs, "dataset.source is required")
	}

	switch c.Fetch.OnError {
	case "skip", "abort":
	default:
		errs = append(errs, fmt.Sprintf("fetch.on_error must be skip or abort, got %q", c.Fetch.OnError))
	}
	if c.Fetch.Concurrency < 1 {
		errs = append(errs, "fetch.concurrency must be at least 1")
	}

	switch c.Bins.Order {
	case "lexical", "numeric":
	default:
		errs = append(errs, fmt.Sprintf("bins.order must be lexical or numeric, got %q", c.Bins.Order))
	}

	switch c.Boundary.Provider {
	case "http":
		if c.Boundary.BaseURL == "" {
			errs = append(errs, "boundary.base_url is required for the http provider")
		}
	case "file":
		if c.Boundary.Dir == "" {
			errs = append(errs, "boundary.dir is required for the file provider")
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, "database.url is required for the postgres provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown boundary.provider %q", c.Boundary.Provider))
	}

	for _, layer := range c.Cache.Layers {
		switch layer {
		case "memory", "sqlite", "redis":
		default:
			errs = append(errs, fmt.Sprintf("unknown cache layer %q", layer))
		}
	}

	if command == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
