// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config は起動時に一度だけ読み込む設定値。読み込み後は変更しない。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Publish
	PublishInterval      time.Duration
	PublishMaxConcurrent int
	PublishWebhookURL    string
	PublishWebhookSecret string
	PublishTimeout       time.Duration
	PublishAllowedPorts  []int
	PostRetentionDays    int
	CleanupInterval      time.Duration

	// Import
	ImportTimeout time.Duration
	ImportMaxSize int64

	// Rate Limit
	RateLimitGeneral    int
	RateLimitPostCreate int

	// Calendar
	Location *time.Location

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを組み立てる。
// .envがあれば読み込むが、既に設定された環境変数が優先される。
// 必須項目が欠けている場合は欠けたキーをすべて列挙したエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		DatabaseURL:        must("DATABASE_URL"),
		GoogleClientID:     must("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: must("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  must("GOOGLE_REDIRECT_URL"),
		SessionSecret:      must("SESSION_SECRET"),
		BaseURL:            must("BASE_URL"),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}

	cfg.SessionMaxAge = positive("SESSION_MAX_AGE", 86400, strconv.Atoi)
	cfg.PublishInterval = positive("PUBLISH_INTERVAL", time.Minute, time.ParseDuration)
	cfg.PublishMaxConcurrent = positive("PUBLISH_MAX_CONCURRENT", 5, strconv.Atoi)
	cfg.PublishWebhookURL = os.Getenv("PUBLISH_WEBHOOK_URL")
	cfg.PublishWebhookSecret = os.Getenv("PUBLISH_WEBHOOK_SECRET")
	cfg.PublishTimeout = positive("PUBLISH_TIMEOUT", 10*time.Second, time.ParseDuration)
	cfg.PublishAllowedPorts = intList(os.Getenv("PUBLISH_ALLOWED_PORTS"))
	cfg.PostRetentionDays = positive("POST_RETENTION_DAYS", 90, strconv.Atoi)
	cfg.CleanupInterval = positive("CLEANUP_INTERVAL", 24*time.Hour, time.ParseDuration)
	cfg.ImportTimeout = positive("IMPORT_TIMEOUT", 10*time.Second, time.ParseDuration)
	cfg.ImportMaxSize = positive("IMPORT_MAX_SIZE", int64(5<<20), parseInt64)
	cfg.RateLimitGeneral = positive("RATE_LIMIT_GENERAL", 120, strconv.Atoi)
	cfg.RateLimitPostCreate = positive("RATE_LIMIT_POST_CREATE", 20, strconv.Atoi)
	cfg.ServerPort = orDefault("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = os.Getenv("COOKIE_DOMAIN")
	cfg.CORSAllowedOrigin = orDefault("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	tz := orDefault("TIMEZONE", "Europe/Zagreb")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func orDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// positive はkeyの値をparseで解釈する。未設定・解釈不能・0以下ならdefを返す。
func positive[T int | int64 | time.Duration](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// intList はカンマ区切りの整数を読む。整数でない要素は読み飛ばす。
func intList(raw string) []int {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
