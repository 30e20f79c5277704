// Package config loads costmap configuration from costmap.yaml and
// COSTMAP_* environment variables, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
	Boundary    BoundaryConfig   `yaml:"boundary" mapstructure:"boundary"`
	Dataset     DatasetConfig    `yaml:"dataset" mapstructure:"dataset"`
	Database    DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Map         MapConfig        `yaml:"map" mapstructure:"map"`
	Projection  ProjectionConfig `yaml:"projection" mapstructure:"projection"`
	Annotations []Annotation     `yaml:"annotations" mapstructure:"annotations"`
	Server      ServerConfig     `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BoundaryConfig selects the county boundary file.
type BoundaryConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Path        string `yaml:"path" mapstructure:"path"`
	Object      string `yaml:"object" mapstructure:"object"`
	Format      string `yaml:"format" mapstructure:"format"`
	Table       string `yaml:"table" mapstructure:"table"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// DatasetConfig selects the region cost dataset.
type DatasetConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"`
	Sheet  string `yaml:"sheet" mapstructure:"sheet"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// DatabaseConfig configures the Postgres pool used by the postgres dataset
// and the postgis boundary source.
type DatabaseConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	ConnectTimeout int    `yaml:"connect_timeout_secs" mapstructure:"connect_timeout_secs"`
}

// MapConfig configures the map component.
type MapConfig struct {
	DefaultRegion     string   `yaml:"default_region" mapstructure:"default_region"`
	DefaultRegionName string   `yaml:"default_region_name" mapstructure:"default_region_name"`
	HoverDebounceMs   int      `yaml:"hover_debounce_ms" mapstructure:"hover_debounce_ms"`
	MobileBreakpoint  float64  `yaml:"mobile_breakpoint" mapstructure:"mobile_breakpoint"`
	HoverDimOpacity   float64  `yaml:"hover_dim_opacity" mapstructure:"hover_dim_opacity"`
	Palette           []string `yaml:"palette" mapstructure:"palette"`
	NeutralColor      string   `yaml:"neutral_color" mapstructure:"neutral_color"`
	Width             float64  `yaml:"width" mapstructure:"width"`
	Height            float64  `yaml:"height" mapstructure:"height"`
	Indicator         string   `yaml:"indicator" mapstructure:"indicator"`
	Mode              string   `yaml:"mode" mapstructure:"mode"`
}

// ProjectionConfig fixes the conic projection.
type ProjectionConfig struct {
	Parallels    []float64 `yaml:"parallels" mapstructure:"parallels"`
	Rotate       []float64 `yaml:"rotate" mapstructure:"rotate"`
	Center       []float64 `yaml:"center" mapstructure:"center"`
	DesktopScale float64   `yaml:"desktop_scale" mapstructure:"desktop_scale"`
	MobileScale  float64   `yaml:"mobile_scale" mapstructure:"mobile_scale"`
}

// Annotation is a direction label drawn in the map body.
type Annotation struct {
	Text string  `yaml:"text" mapstructure:"text"`
	Lon  float64 `yaml:"lon" mapstructure:"lon"`
	Lat  float64 `yaml:"lat" mapstructure:"lat"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowAllOrigins bool     `yaml:"allow_all_origins" mapstructure:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit       float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst       int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CacheEntries    int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSecs    int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	SessionTTLSecs  int      `yaml:"session_ttl_secs" mapstructure:"session_ttl_secs"`
	MaxSessions     int      `yaml:"max_sessions" mapstructure:"max_sessions"`
	RequestTimeout  int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("costmap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COSTMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("boundary.object", "counties")
	v.SetDefault("boundary.format", "auto")
	v.SetDefault("boundary.table", "geo.counties")
	v.SetDefault("boundary.temp_dir", "/tmp/costmap")
	v.SetDefault("boundary.timeout_secs", 30)
	v.SetDefault("boundary.user_agent", "costmap/1.0")
	v.SetDefault("dataset.format", "auto")
	v.SetDefault("dataset.table", "cost.regions")
	v.SetDefault("database.connect_timeout_secs", 10)
	v.SetDefault("map.default_region", "51760")
	v.SetDefault("map.default_region_name", "Richmond city")
	v.SetDefault("map.hover_debounce_ms", 40)
	v.SetDefault("map.mobile_breakpoint", 768)
	v.SetDefault("map.hover_dim_opacity", 0.5)
	v.SetDefault("map.palette", []string{"#eff3ff", "#bdd7e7", "#6baed6", "#3182bd", "#08519c"})
	v.SetDefault("map.neutral_color", "#d9d9d9")
	v.SetDefault("map.width", 960)
	v.SetDefault("map.height", 600)
	v.SetDefault("map.indicator", "combined")
	v.SetDefault("map.mode", "perCapita")
	v.SetDefault("projection.parallels", []float64{37, 39.5})
	v.SetDefault("projection.rotate", []float64{79.5, 0, 0})
	v.SetDefault("projection.center", []float64{0, 37.9})
	v.SetDefault("projection.desktop_scale", 6500)
	v.SetDefault("projection.mobile_scale", 5000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl_secs", 300)
	v.SetDefault("server.session_ttl_secs", 1800)
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.request_timeout_secs", 30)

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

// Validate checks the settings a command mode depends on. Modes: "map"
// (bind, legend, render) and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "map", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Boundary.Format == "postgis" {
		if c.Database.URL == "" {
			errs = append(errs, "database.url is required for the postgis boundary format")
		}
	} else if c.Boundary.URL == "" && c.Boundary.Path == "" {
		errs = append(errs, "boundary.url or boundary.path is required")
	}
	if c.Dataset.Format == "postgres" {
		if c.Database.URL == "" {
			errs = append(errs, "database.url is required for the postgres dataset format")
		}
	} else if c.Dataset.Path == "" {
		errs = append(errs, "dataset.path is required")
	}

	if len(c.Map.Palette) == 0 {
		errs = append(errs, "map.palette must not be empty")
	}
	if c.Map.HoverDimOpacity <= 0 || c.Map.HoverDimOpacity > 1 {
		errs = append(errs, "map.hover_dim_opacity must be in (0, 1]")
	}
	if c.Map.HoverDebounceMs < 0 {
		errs = append(errs, "map.hover_debounce_ms must be >= 0")
	}
	if len(c.Projection.Parallels) != 2 {
		errs = append(errs, "projection.parallels needs 2 values")
	}
	if n := len(c.Projection.Rotate); n < 2 || n > 3 {
		errs = append(errs, "projection.rotate needs 2 or 3 values")
	}
	if len(c.Projection.Center) != 2 {
		errs = append(errs, "projection.center needs 2 values")
	}
	if c.Projection.DesktopScale <= 0 || c.Projection.MobileScale <= 0 {
		errs = append(errs, "projection scales must be > 0")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
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
