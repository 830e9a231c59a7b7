// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Procore OAuth
	ProcoreClientID     string
	ProcoreClientSecret string
	ProcoreRedirectURL  string
	ProcoreAuthorizeURL string
	ProcoreTokenURL     string

	// Procore API
	ProcoreBaseURL   string
	ProcoreCompanyID string

	// OAuth stateトークン
	StateSecret string
	StateTTL    time.Duration

	// ホスティング基盤が発行するユーザーJWTの検証鍵
	AuthJWTSecret string

	// 内部エンドポイント（キュー処理・バックフィル）用のサービスキー
	ServiceKey string

	// Sync
	SyncBatchLimit   int
	SyncInterval     time.Duration
	SyncPageSize     int
	RemoteTimeout    time.Duration
	RemoteRatePerSec float64
	RemoteRateBurst  int

	// Rate Limit（APIエンドポイント、req/min/user）
	RateLimitGeneral     int
	RateLimitSyncTrigger int

	// Server
	ServerPort string
	BaseURL    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.ProcoreClientID = os.Getenv("PROCORE_CLIENT_ID")
	if cfg.ProcoreClientID == "" {
		missing = append(missing, "PROCORE_CLIENT_ID")
	}

	cfg.ProcoreClientSecret = os.Getenv("PROCORE_CLIENT_SECRET")
	if cfg.ProcoreClientSecret == "" {
		missing = append(missing, "PROCORE_CLIENT_SECRET")
	}

	cfg.ProcoreRedirectURL = os.Getenv("PROCORE_REDIRECT_URL")
	if cfg.ProcoreRedirectURL == "" {
		missing = append(missing, "PROCORE_REDIRECT_URL")
	}

	cfg.ProcoreCompanyID = os.Getenv("PROCORE_COMPANY_ID")
	if cfg.ProcoreCompanyID == "" {
		missing = append(missing, "PROCORE_COMPANY_ID")
	}

	cfg.StateSecret = os.Getenv("STATE_SECRET")
	if cfg.StateSecret == "" {
		missing = append(missing, "STATE_SECRET")
	}

	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}

	cfg.ServiceKey = os.Getenv("SERVICE_KEY")
	if cfg.ServiceKey == "" {
		missing = append(missing, "SERVICE_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ProcoreAuthorizeURL = getEnvString("PROCORE_AUTHORIZE_URL", "https://login.procore.com/oauth/authorize")
	cfg.ProcoreTokenURL = getEnvString("PROCORE_TOKEN_URL", "https://login.procore.com/oauth/token")
	cfg.ProcoreBaseURL = getEnvString("PROCORE_BASE_URL", "https://api.procore.com")
	cfg.StateTTL = getEnvDuration("STATE_TTL", 10*time.Minute)
	cfg.SyncBatchLimit = getEnvInt("SYNC_BATCH_LIMIT", 50)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 10*time.Minute)
	cfg.SyncPageSize = getEnvInt("SYNC_PAGE_SIZE", 100)
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", 30*time.Second)
	cfg.RemoteRatePerSec = getEnvFloat("REMOTE_RATE_PER_SEC", 5.0)
	cfg.RemoteRateBurst = getEnvInt("REMOTE_RATE_BURST", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSyncTrigger = getEnvInt("RATE_LIMIT_SYNC_TRIGGER", 4)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
