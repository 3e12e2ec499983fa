// Package config loads server settings from the environment. A .env file
// in the working directory is read first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`

	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`

	JWT struct {
		Secret      string `mapstructure:"secret"`
		ExpiryHours int    `mapstructure:"expiry_hours"`
	} `mapstructure:"jwt"`

	Demo struct {
		UserID string `mapstructure:"user_id"`
	} `mapstructure:"demo"`

	S3 struct {
		Endpoint        string `mapstructure:"endpoint"`
		Region          string `mapstructure:"region"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	} `mapstructure:"s3"`

	SignedURLTTLMinutes int `mapstructure:"signed_url_ttl_minutes"`

	CORS struct {
		Origins  string `mapstructure:"origins"`
		AllowAll bool   `mapstructure:"allow_all"`
	} `mapstructure:"cors"`

	RateLimit struct {
		PerMinute int `mapstructure:"per_minute"`
	} `mapstructure:"rate_limit"`

	Telegram struct {
		BotToken string `mapstructure:"bot_token"`
	} `mapstructure:"telegram"`

	Reminder struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
		LookaheadDays   int `mapstructure:"lookahead_days"`
	} `mapstructure:"reminder"`
}

var defaults = map[string]interface{}{
	"port":                      "8080",
	"log_level":                 "info",
	"log_file":                  "",
	"database.url":              "file:battdevy.db",
	"redis.url":                 "",
	"jwt.secret":                "",
	"jwt.expiry_hours":          24 * 7,
	"demo.user_id":              "",
	"s3.endpoint":               "",
	"s3.region":                 "auto",
	"s3.access_key_id":          "",
	"s3.secret_access_key":      "",
	"signed_url_ttl_minutes":    60,
	"cors.origins":              "http://localhost:3000",
	"cors.allow_all":            false,
	"rate_limit.per_minute":     120,
	"telegram.bot_token":        "",
	"reminder.interval_minutes": 60,
	"reminder.lookahead_days":   3,
}

// Load reads .env (if any) and the process environment. Nested keys map to
// upper-case env names joined by underscores, e.g. jwt.secret is JWT_SECRET.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	if c.SignedURLTTLMinutes <= 5 {
		return fmt.Errorf("SIGNED_URL_TTL_MINUTES must be greater than 5")
	}
	if c.Demo.UserID != "" {
		if _, err := uuid.Parse(c.Demo.UserID); err != nil {
			return fmt.Errorf("DEMO_USER_ID is not a valid UUID: %w", err)
		}
	}
	return nil
}

func (c Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWT.ExpiryHours) * time.Hour
}

func (c Config) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLMinutes) * time.Minute
}

func (c Config) ReminderInterval() time.Duration {
	return time.Duration(c.Reminder.IntervalMinutes) * time.Minute
}

func (c Config) ReminderLookahead() time.Duration {
	return time.Duration(c.Reminder.LookaheadDays) * 24 * time.Hour
}

// DemoUserID is uuid.Nil when demo login is disabled.
func (c Config) DemoUserID() uuid.UUID {
	if c.Demo.UserID == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(c.Demo.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORS.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// StorageEnabled reports whether S3-compatible credentials were provided.
func (c Config) StorageEnabled() bool {
	return c.S3.Endpoint != "" && c.S3.AccessKeyID != "" && c.S3.SecretAccessKey != ""
}
