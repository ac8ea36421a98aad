// Package config loads service settings from the environment (optionally
// seeded from a .env file) and validates them.
package config

import (
	"fmt"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port       int    `mapstructure:"port" validate:"required|min:1|max:65535"`
	CorsOrigin string `mapstructure:"corsOrigin" validate:"required"`
	AdminToken string `mapstructure:"adminToken"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required"`
	MaxIdleConns int    `mapstructure:"maxIdleConns" validate:"min:0"`
	MaxOpenConns int    `mapstructure:"maxOpenConns" validate:"required|min:1"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwtSecret" validate:"required|minLen:16"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL" validate:"required"`
}

type ModerationConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"apiKey"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

type GeocoderConfig struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"userAgent" validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"required"`
}

type PostsConfig struct {
	FuzzRadiusMeters float64 `mapstructure:"fuzzRadiusMeters" validate:"required|min:1"`
	DailyLimit       bool    `mapstructure:"dailyLimit"`
	DefaultTimezone  string  `mapstructure:"defaultTimezone" validate:"required"`
	SnowflakeNode    int64   `mapstructure:"snowflakeNode" validate:"min:0|max:1023"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required|in:debug,info,warn,error"`
	Dev   bool   `mapstructure:"dev"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	SizeMB  int  `mapstructure:"sizeMB" validate:"min:0"`
	TTL     int  `mapstructure:"ttlSeconds" validate:"min:0"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	AppName    string
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Geocoder   GeocoderConfig   `mapstructure:"geocoder"`
	Posts      PostsConfig      `mapstructure:"posts"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`

	// Location is DefaultTimezone resolved by Load.
	Location *time.Location `mapstructure:"-"`
}

var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.corsOrigin":      "CORS_ORIGIN",
	"server.adminToken":      "X_ADMIN_TOKEN",
	"database.url":           "DATABASE_URL",
	"database.maxIdleConns":  "DATABASE_MAX_IDLE_CONNS",
	"database.maxOpenConns":  "DATABASE_MAX_OPEN_CONNS",
	"auth.jwtSecret":         "JWT_SECRET",
	"auth.tokenTTL":          "TOKEN_TTL",
	"moderation.url":         "MODERATION_URL",
	"moderation.apiKey":      "MODERATION_API_KEY",
	"moderation.timeout":     "MODERATION_TIMEOUT",
	"geocoder.url":           "GEOCODER_URL",
	"geocoder.userAgent":     "GEOCODER_USER_AGENT",
	"geocoder.timeout":       "GEOCODER_TIMEOUT",
	"posts.fuzzRadiusMeters": "FUZZ_RADIUS_METERS",
	"posts.dailyLimit":       "DAILY_POST_LIMIT",
	"posts.defaultTimezone":  "DEFAULT_TIMEZONE",
	"posts.snowflakeNode":    "SNOWFLAKE_NODE",
	"logger.level":           "LOG_LEVEL",
	"logger.dev":             "LOG_DEV",
	"cache.enabled":          "CACHE_ENABLED",
	"cache.sizeMB":           "CACHE_SIZE_MB",
	"cache.ttlSeconds":       "CACHE_TTL_SECONDS",
	"metrics.enabled":        "METRICS_ENABLED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.corsOrigin", "*")
	v.SetDefault("server.adminToken", "")
	v.SetDefault("database.url", "sqlite://allgood.db")
	v.SetDefault("database.maxIdleConns", 10)
	v.SetDefault("database.maxOpenConns", 100)
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "8760h")
	v.SetDefault("moderation.url", "")
	v.SetDefault("moderation.apiKey", "")
	v.SetDefault("moderation.timeout", "5s")
	v.SetDefault("geocoder.url", "")
	v.SetDefault("geocoder.userAgent", "allgood-server")
	v.SetDefault("geocoder.timeout", "5s")
	v.SetDefault("posts.fuzzRadiusMeters", 5000)
	v.SetDefault("posts.dailyLimit", true)
	v.SetDefault("posts.defaultTimezone", "UTC")
	v.SetDefault("posts.snowflakeNode", 1)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.dev", false)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.sizeMB", 16)
	v.SetDefault("cache.ttlSeconds", 5)
	v.SetDefault("metrics.enabled", true)
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := Validate(&conf); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(conf.Posts.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", conf.Posts.DefaultTimezone, err)
	}
	conf.Location = loc
	conf.AppName = "AllGood"

	return &conf, nil
}

// Validate checks every section against its validate tags.
func Validate(conf *Config) error {
	sections := []struct {
		name  string
		value any
	}{
		{"server", &conf.Server},
		{"database", &conf.Database},
		{"auth", &conf.Auth},
		{"moderation", &conf.Moderation},
		{"geocoder", &conf.Geocoder},
		{"posts", &conf.Posts},
		{"logger", &conf.Logger},
		{"cache", &conf.Cache},
	}
	for _, s := range sections {
		v := validate.Struct(s.value)
		if !v.Validate() {
			return fmt.Errorf("invalid %s config: %w", s.name, v.Errors)
		}
	}
	return nil
}
