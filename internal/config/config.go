// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Network provider
	NetworkProvider string
	RouterAPIURL    string
	RouterAPIKey    string
	ProviderTimeout time.Duration
	ProviderRetries int

	// Reconciliation
	ReconcileInterval    time.Duration
	HistoryRetentionDays int

	// Device ceilings
	DefaultMaxDevices  int
	BusinessMaxDevices int

	// Session
	SessionMaxAge int

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitRedeem  int

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// サポートするネットワークプロバイダー名。
const (
	ProviderSimulated  = "simulated"
	ProviderHTTPRouter = "http-router"
	ProviderRadius     = "radius"
)

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（未設定の変数のみ反映）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発用。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NetworkProvider = strings.ToLower(getEnvString("NETWORK_PROVIDER", ProviderSimulated))
	cfg.RouterAPIURL = getEnvString("ROUTER_API_URL", "")
	cfg.RouterAPIKey = getEnvString("ROUTER_API_KEY", "")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 5*time.Second)
	cfg.ProviderRetries = getEnvInt("PROVIDER_RETRIES", 2)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", time.Hour)
	cfg.HistoryRetentionDays = getEnvInt("HISTORY_RETENTION_DAYS", 180)
	cfg.DefaultMaxDevices = getEnvInt("DEFAULT_MAX_DEVICES", 1)
	cfg.BusinessMaxDevices = getEnvInt("BUSINESS_MAX_DEVICES", 5)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRedeem = getEnvInt("RATE_LIMIT_REDEEM", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// http-routerプロバイダーにはエンドポイントURLが必須
	if cfg.NetworkProvider == ProviderHTTPRouter && cfg.RouterAPIURL == "" {
		return nil, fmt.Errorf("ROUTER_API_URL is required when NETWORK_PROVIDER=%s", ProviderHTTPRouter)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
