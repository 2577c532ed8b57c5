package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	Environment string `mapstructure:"environment"`
	// IdleTimeout is the transport idle timeout in seconds. Expiry closes
	// every stream of the connection, which triggers registry cleanup.
	IdleTimeout int `mapstructure:"idle_timeout"`
	// MaxBidiStreams caps concurrent request streams per connection.
	MaxBidiStreams int `mapstructure:"max_bidi_streams"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxConnections  int    `mapstructure:"max_connections"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	// Secret signs bearer tokens. Loaded once at startup; the process
	// refuses to start without it.
	Secret string `mapstructure:"secret"`
	// TokenTTL is the token lifetime in hours.
	TokenTTL int `mapstructure:"token_ttl"`
}

// Load reads .env (if present), applies viper defaults, binds environment
// variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}
	}

	viper.AutomaticEnv()
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Environment variables take precedence over defaults.
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}
	if secret := os.Getenv("SECRET"); secret != "" {
		config.Auth.Secret = secret
	}
	if env := os.Getenv("GO_ENV"); env != "" {
		config.Server.Environment = env
	}

	slog.Info("Configuration loaded",
		"server_addr", config.Server.Addr,
		"environment", config.Server.Environment,
		"redis_configured", config.Redis.URL != "")

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", "0.0.0.0:8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.idle_timeout", 300)
	viper.SetDefault("server.max_bidi_streams", 100)

	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("auth.token_ttl", 24)

	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("server.addr", "SERVER_ADDR")
	viper.BindEnv("server.environment", "GO_ENV")
	viper.BindEnv("auth.secret", "SECRET")
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if config.Auth.Secret == "" {
		return fmt.Errorf("SECRET is required")
	}
	return nil
}
