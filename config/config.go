package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. OZONSCOUT_DATABASE_URL
const EnvPrefix = "OZONSCOUT"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Ozon      OzonConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Bot       BotConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SecretKey      string   `mapstructure:"secret_key"` // empty disables the X-Secret-Key check
}

// OzonConfig holds marketplace access configuration
type OzonConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	HeadersFile    string        `mapstructure:"headers_file"`
	UserAgent      string        `mapstructure:"user_agent"`
	Cookie         string        `mapstructure:"cookie"`
	Accept         string        `mapstructure:"accept"`
	AcceptLanguage string        `mapstructure:"accept_language"`
}

// Headers returns the configured request headers, skipping empty values
func (o OzonConfig) Headers() map[string]string {
	headers := make(map[string]string)
	for name, value := range map[string]string{
		"User-Agent":      o.UserAgent,
		"Cookie":          o.Cookie,
		"Accept":          o.Accept,
		"Accept-Language": o.AcceptLanguage,
	} {
		if value != "" {
			headers[name] = value
		}
	}
	return headers
}

// DatabaseConfig holds relational store configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	IdentityTTL     time.Duration `mapstructure:"identity_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int     `mapstructure:"per_ip"` // requests per minute per client IP, 0 disables
	Ozon  float64 `mapstructure:"ozon"`   // outbound requests per second, 0 disables
}

// BotConfig holds chat bot configuration
type BotConfig struct {
	Token           string        `mapstructure:"token"`
	SortTimeout     time.Duration `mapstructure:"sort_timeout"`
	FeedbackTimeout time.Duration `mapstructure:"feedback_timeout"`
}

// Validate checks the settings only the bot needs
func (b BotConfig) Validate() error {
	if b.Token == "" {
		return fmt.Errorf("bot token is required (set %s_BOT_TOKEN)", EnvPrefix)
	}
	return nil
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := LoadDotEnv(""); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ozonscout/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default so
// that AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.secret_key", "")

	v.SetDefault("ozon.base_url", "https://www.ozon.ru")
	v.SetDefault("ozon.timeout", "25s")
	v.SetDefault("ozon.retry_attempts", 3)
	v.SetDefault("ozon.retry_delay", "5s")
	v.SetDefault("ozon.headers_file", "")
	v.SetDefault("ozon.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36")
	v.SetDefault("ozon.cookie", "")
	v.SetDefault("ozon.accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	v.SetDefault("ozon.accept_language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("cache.freshness_window", "168h") // 7 days
	v.SetDefault("cache.identity_ttl", "1h")

	v.SetDefault("ratelimit.per_ip", 60)
	v.SetDefault("ratelimit.ozon", 2)

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.sort_timeout", "5m")
	v.SetDefault("bot.feedback_timeout", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required (set %s_DATABASE_URL)", EnvPrefix)
	}

	if config.Ozon.BaseURL == "" {
		return fmt.Errorf("marketplace base URL is required")
	}

	if config.Ozon.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got: %d", config.Ozon.RetryAttempts)
	}

	if config.Ozon.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got: %s", config.Ozon.RetryDelay)
	}

	if config.Cache.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness window must be positive, got: %s", config.Cache.FreshnessWindow)
	}

	if config.RateLimit.PerIP < 0 || config.RateLimit.Ozon < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	return nil
}
