package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr string
	// InternalToken guards the save-pipeline ingestion route when set.
	InternalToken string

	RedisURL    string
	DatabaseURL string

	StoreTimeout    time.Duration
	StoreMaxRetries int
	HistoryTimeout  time.Duration

	PushWebhookURL string
	PushAPIKey     string
	PushTimeout    time.Duration

	BalanceFile string
	MessagesDir string

	PurgeSchedule     string
	ReconcileSchedule string

	Balance Balance
}

// Load reads the process environment. A .env file in the working directory is applied
// first when present; variables already set in the environment take precedence.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		HTTPAddr:          ":8080",
		StoreTimeout:      3 * time.Second,
		StoreMaxRetries:   8,
		HistoryTimeout:    3 * time.Second,
		PushTimeout:       5 * time.Second,
		PurgeSchedule:     "0 */10 * * * *",
		ReconcileSchedule: "0 0 * * * *",
	}

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.InternalToken = env("INTERNAL_TOKEN")
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if n, ok := positiveInt("STORE_TIMEOUT_MS"); ok {
		cfg.StoreTimeout = time.Duration(n) * time.Millisecond
	}
	if n, ok := positiveInt("STORE_MAX_RETRIES"); ok {
		cfg.StoreMaxRetries = n
	}
	if n, ok := positiveInt("HISTORY_TIMEOUT_MS"); ok {
		cfg.HistoryTimeout = time.Duration(n) * time.Millisecond
	}

	cfg.PushWebhookURL = env("PUSH_WEBHOOK_URL")
	cfg.PushAPIKey = env("PUSH_API_KEY")
	if n, ok := positiveInt("PUSH_TIMEOUT_MS"); ok {
		cfg.PushTimeout = time.Duration(n) * time.Millisecond
	}

	cfg.BalanceFile = env("BALANCE_FILE")
	cfg.MessagesDir = env("MESSAGES_DIR")

	if v := env("PURGE_SCHEDULE"); v != "" {
		cfg.PurgeSchedule = v
	}
	if v := env("RECONCILE_SCHEDULE"); v != "" {
		cfg.ReconcileSchedule = v
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	bal, err := LoadBalance(cfg.BalanceFile)
	if err != nil {
		return nil, err
	}
	cfg.Balance = bal

	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func positiveInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
