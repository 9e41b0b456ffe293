package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend はテーブル操作の実行先を表す。
type Backend string

const (
	// BackendREST はSupabaseのREST API（PostgREST）を使用する。
	BackendREST Backend = "rest"
	// BackendPostgres はPostgreSQLに直接接続する。
	BackendPostgres Backend = "postgres"
	// BackendMemory はメモリ上のテーブルを使用する。ローカル確認用。
	BackendMemory Backend = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Supabase
	// 未設定でも起動は継続し、最初の操作時に警告を出してクライアントを未初期化のままにする。
	SupabaseURL     string
	SupabaseAnonKey string

	// Backend
	Backend       Backend
	DatabaseURL   string
	RemoteTimeout time.Duration

	// Rate Limit
	RateLimitPerMinute int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string

	// CORS（カンマ区切りで複数オリジンを指定できる）
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// SUPABASE_URL の形式が不正な場合、BRIDGE_BACKEND が未知の値の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.SupabaseURL = strings.TrimSpace(os.Getenv("SUPABASE_URL"))
	if cfg.SupabaseURL != "" {
		u, err := url.Parse(cfg.SupabaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid SUPABASE_URL: %q", cfg.SupabaseURL)
		}
	}
	cfg.SupabaseAnonKey = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))

	cfg.Backend = Backend(getEnvString("BRIDGE_BACKEND", string(BackendREST)))
	switch cfg.Backend {
	case BackendREST, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown BRIDGE_BACKEND: %q (rest, postgres, memory)", cfg.Backend)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// Optional fields with defaults
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", 10*time.Second)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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

// getEnvLevel は debug/info/warn/error を slog.Level に変換する。
func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
