package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the access-control service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseDriver      string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	ChannelBase         string
	JWTSecret           string
	MatrixCacheTTL      time.Duration
	SeedModules         bool
	GuardLastSuperAdmin bool
	DirectoryCacheSize  int
	DirectoryCacheTTL   time.Duration
	AllowOrigins        string
	MutationRateLimit   int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Access")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("realtime.channel_base", "gema:access")
	v.SetDefault("rbac.matrix_cache_ttl", "2m")
	v.SetDefault("rbac.seed_modules", true)
	v.SetDefault("rbac.guard_last_super_admin", true)
	v.SetDefault("directory.cache_size", 512)
	v.SetDefault("directory.cache_ttl", "5m")
	v.SetDefault("http.allow_origins", "*")
	v.SetDefault("rbac.mutation_rate_limit", 60)

	matrixTTL, err := parseDuration(v.GetString("rbac.matrix_cache_ttl"), 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid matrix cache ttl: %w", err)
	}

	directoryTTL, err := parseDuration(v.GetString("directory.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid directory cache ttl: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseDriver:      strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		ChannelBase:         v.GetString("realtime.channel_base"),
		JWTSecret:           v.GetString("jwt.secret"),
		MatrixCacheTTL:      matrixTTL,
		SeedModules:         v.GetBool("rbac.seed_modules"),
		GuardLastSuperAdmin: v.GetBool("rbac.guard_last_super_admin"),
		DirectoryCacheSize:  v.GetInt("directory.cache_size"),
		DirectoryCacheTTL:   directoryTTL,
		AllowOrigins:        strings.TrimSpace(v.GetString("http.allow_origins")),
		MutationRateLimit:   v.GetInt("rbac.mutation_rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.DirectoryCacheSize <= 0 {
		cfg.DirectoryCacheSize = 512
	}
	if cfg.MutationRateLimit <= 0 {
		cfg.MutationRateLimit = 60
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
