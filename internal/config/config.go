package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string        `env:"TELEGRAM_BOT_TOKEN"`
	TokenFile     string        `env:"TELEGRAM_BOT_TOKEN_FILE" envDefault:"/run/secrets/telegram_bot_token"`
	DBPath        string        `env:"DB_PATH" envDefault:"bot.db"`
	Timezone      string        `env:"BOT_TIMEZONE" envDefault:"Local"`
	ReminderTick  time.Duration `env:"REMINDER_TICK" envDefault:"10s"`
	TextsPath     string        `env:"TEXTS_PATH"`
	LogMode       string        `env:"LOG_MODE" envDefault:"dev"`
	MetricsAddr   string        `env:"METRICS_ADDR"`
	SendRate      float64       `env:"SEND_RATE" envDefault:"25"`
	DebugAPI      bool          `env:"DEBUG_API"`
}

var ErrNoToken = errors.New("telegram token not found: neither docker secret nor TELEGRAM_BOT_TOKEN is set")

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.TelegramToken = botToken(cfg.TokenFile, cfg.TelegramToken)
	if cfg.TelegramToken == "" {
		return Config{}, ErrNoToken
	}
	if cfg.ReminderTick <= 0 {
		return Config{}, fmt.Errorf("REMINDER_TICK must be positive, got %s", cfg.ReminderTick)
	}
	if cfg.SendRate <= 0 {
		return Config{}, fmt.Errorf("SEND_RATE must be positive, got %v", cfg.SendRate)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves BOT_TIMEZONE; "Local" and "" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("BOT_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// the docker secret wins over the variable
func botToken(file, fromEnv string) string {
	if file != "" {
		if data, err := os.ReadFile(file); err == nil {
			if token := strings.TrimSpace(string(data)); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(fromEnv)
}
