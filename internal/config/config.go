package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	CoinGeckoBaseURL string
	Port             int

	ScanTopN         int
	ScanInterval     time.Duration
	SubjectDelay     time.Duration
	MovementPct      float64
	SignalCooldown   time.Duration
	MovementCooldown time.Duration
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CoinGeckoBaseURL: strings.TrimSpace(os.Getenv("COINGECKO_BASE_URL")),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.Port = 8080
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}

	cfg.ScanTopN = 20
	if v := strings.TrimSpace(os.Getenv("SCAN_TOP_N")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ScanTopN = n
		}
	}

	cfg.ScanInterval = 30 * time.Minute
	if v := strings.TrimSpace(os.Getenv("SCAN_INTERVAL_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ScanInterval = time.Duration(n) * time.Minute
		}
	}

	cfg.SubjectDelay = 1500 * time.Millisecond
	if v := strings.TrimSpace(os.Getenv("SUBJECT_FETCH_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.SubjectDelay = time.Duration(n) * time.Millisecond
		}
	}

	cfg.MovementPct = 7.0
	if v := strings.TrimSpace(os.Getenv("MOVEMENT_THRESHOLD_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.MovementPct = n
		}
	}

	cfg.SignalCooldown = 240 * time.Minute
	if v := strings.TrimSpace(os.Getenv("SIGNAL_COOLDOWN_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SignalCooldown = time.Duration(n) * time.Minute
		}
	}

	cfg.MovementCooldown = 60 * time.Minute
	if v := strings.TrimSpace(os.Getenv("MOVEMENT_COOLDOWN_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MovementCooldown = time.Duration(n) * time.Minute
		}
	}

	return cfg
}
