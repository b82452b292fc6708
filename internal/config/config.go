// Package config は環境変数からのアプリケーション設定と
// シークレットの解決を提供する。
//
// シークレットの検証は起動時のLoad呼び出しに集約する。
// 本番モードで必須シークレットが欠落している場合、Loadはエラーを返し
// プロセスは起動しない（安全でない状態で稼働し続けない）。
// ALLOW_BUILD_PLACEHOLDER=true が設定されたビルド用コンテキストでのみ、
// 明示的に命名されたプレースホルダー値で代替する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env はランタイムモードを表す。
type Env string

const (
	// EnvProduction は本番モード。シークレット欠落はエラーとなる。
	EnvProduction Env = "production"
	// EnvDevelopment は開発モード。シークレット欠落時は固定デフォルトを使用する。
	EnvDevelopment Env = "development"
	// EnvTest はテストモード。開発モードと同じデフォルトを使用する。
	EnvTest Env = "test"
)

// 開発モード用の固定デフォルトシークレット。本番では使用されない。
const (
	devJWTSecret     = "default-jwt-secret-for-development-only"
	devSessionSecret = "default-session-secret-for-development-only"
)

// ビルド用プレースホルダー。ALLOW_BUILD_PLACEHOLDER=true の場合のみ
// 本番モードで代替される。実行時の利用は想定しない。
const (
	buildPlaceholderJWTSecret     = "placeholder-jwt-secret-for-build-only"
	buildPlaceholderSessionSecret = "placeholder-session-secret-for-build-only"
)

// 開発・ビルド用の暗号化キー（32バイトのゼロ、64文字hex）。
const devFieldEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	Env Env

	// Database
	DatabaseURL string

	// Spotify OAuth
	SpotifyClientID     string
	SpotifyClientSecret string

	// Secrets
	JWTSecret          string
	SessionSecret      string
	FieldEncryptionKey string
	DebugSecretKey     string

	// Session
	SessionMaxAge int // セッション有効期間（秒）
	StateMaxAge   int // OAuth state Cookieの有効期間（秒）

	// Worker
	SessionCleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int // req/min/user
	RateLimitLogin   int // req/min/IP

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// RedirectURI はSpotify OAuthコールバックの完全なリダイレクトURIを返す。
func (c *Config) RedirectURI() string {
	return c.BaseURL + "/api/auth/callback/spotify"
}

// IsProduction は本番モードかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、および本番モードで必須シークレットが
// 解決できない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = parseEnv(os.Getenv("APP_ENV"))

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	allowPlaceholder := os.Getenv("ALLOW_BUILD_PLACEHOLDER") == "true"

	// Spotify認証情報。開発モードでもデフォルトは提供しない
	// （外部プロバイダーの実クレデンシャルに安全な代替は無い）。
	cfg.SpotifyClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.SpotifyClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	if cfg.Env == EnvProduction && !allowPlaceholder {
		if cfg.SpotifyClientID == "" {
			return nil, fmt.Errorf("SPOTIFY_CLIENT_ID is required in production")
		}
		if cfg.SpotifyClientSecret == "" {
			return nil, fmt.Errorf("SPOTIFY_CLIENT_SECRET is required in production")
		}
	}

	var err error
	cfg.JWTSecret, err = resolveSecret(cfg.Env, "JWT_SECRET", allowPlaceholder, devJWTSecret, buildPlaceholderJWTSecret)
	if err != nil {
		return nil, err
	}
	cfg.SessionSecret, err = resolveSecret(cfg.Env, "SESSION_SECRET", allowPlaceholder, devSessionSecret, buildPlaceholderSessionSecret)
	if err != nil {
		return nil, err
	}
	cfg.FieldEncryptionKey, err = resolveFieldEncryptionKey(cfg.Env, allowPlaceholder)
	if err != nil {
		return nil, err
	}

	cfg.DebugSecretKey = os.Getenv("DEBUG_SECRET_KEY")

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800) // 7日
	cfg.StateMaxAge = getEnvInt("STATE_MAX_AGE", 600)        // 10分
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = cfg.Env == EnvProduction || strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// parseEnv はAPP_ENVの値をEnvに変換する。未設定・未知の値は開発モード。
func parseEnv(v string) Env {
	switch v {
	case string(EnvProduction):
		return EnvProduction
	case string(EnvTest):
		return EnvTest
	default:
		return EnvDevelopment
	}
}

// resolveSecret は必須シークレットを解決する。
// 本番モード: 未設定はエラー。ただしallowPlaceholderの場合はプレースホルダーを返す。
// 非本番モード: 未設定は開発用デフォルトを返す。
func resolveSecret(env Env, name string, allowPlaceholder bool, devDefault, buildPlaceholder string) (string, error) {
	v := os.Getenv(name)
	if v != "" {
		return v, nil
	}

	if env == EnvProduction {
		if allowPlaceholder {
			return buildPlaceholder, nil
		}
		return "", fmt.Errorf("%s is required in production (set ALLOW_BUILD_PLACEHOLDER=true only for build processes)", name)
	}

	return devDefault, nil
}

// resolveFieldEncryptionKey はFIELD_ENCRYPTION_KEYを解決し、形式を検証する。
// 設定されている場合は64文字のhex（32バイト）でなければエラー。
func resolveFieldEncryptionKey(env Env, allowPlaceholder bool) (string, error) {
	key, err := resolveSecret(env, "FIELD_ENCRYPTION_KEY", allowPlaceholder, devFieldEncryptionKey, devFieldEncryptionKey)
	if err != nil {
		return "", err
	}
	if !ValidateEncryptionKey(key) {
		return "", fmt.Errorf("invalid FIELD_ENCRYPTION_KEY format: must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// ValidateEncryptionKey は暗号化キーが64文字のhex文字列（32バイト）で
// あるかどうかを検証する。
func ValidateEncryptionKey(key string) bool {
	if len(key) != 64 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
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
