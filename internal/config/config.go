package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string // SQLite file path, or postgres:// URL
	RedisURL            string // optional; import sessions fall back to the database
	UploadDir           string // uploaded import files and backups awaiting restore
	MaxUploadMB         int
	ImportSessionTTL    time.Duration
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string
	LogLevel            string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "data/projects.db")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_MB", 16)
	v.SetDefault("IMPORT_SESSION_TTL", "1h")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	return FromViper(viper.GetViper()), nil
}

// FromViper builds a Config from an already-populated viper instance (used by the CLI,
// which binds flags into the same keys).
func FromViper(v *viper.Viper) *Config {
	setDefaults(v)

	ttl := v.GetDuration("IMPORT_SESSION_TTL")
	if ttl <= 0 {
		ttl = time.Hour
	}
	maxMB := v.GetInt("MAX_UPLOAD_MB")
	if maxMB <= 0 {
		maxMB = 16
	}

	return &Config{
		Env:                 v.GetString("APP_ENV"),
		Port:                v.GetString("PORT"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisURL:            v.GetString("REDIS_URL"),
		UploadDir:           v.GetString("UPLOAD_DIR"),
		MaxUploadMB:         maxMB,
		ImportSessionTTL:    ttl,
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
