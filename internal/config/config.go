// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Mode は動作モード。
type Mode string

const (
	// ModeDemo はデモモード。JWT_SECRET未設定時に固定の署名鍵を使う。
	ModeDemo Mode = "demo"
	// ModeProduction は本番モード。JWT_SECRETの設定が必須になる。
	ModeProduction Mode = "production"
)

// Driver は認証情報の保存先。
type Driver string

const (
	// DriverMemory はプロセス内メモリに保存する。再起動で消える。
	DriverMemory Driver = "memory"
	// DriverSQLite はSQLiteファイルに保存する。
	DriverSQLite Driver = "sqlite"
	// DriverPostgres はPostgreSQLに保存する。
	DriverPostgres Driver = "postgres"
)

// DemoJWTSecret はデモモードでのみ使う署名鍵。
const DemoJWTSecret = "todoedge-demo-secret-do-not-use-in-production"

// defaultSQLiteDSN はSQLite使用時の既定の接続文字列。
const defaultSQLiteDSN = "file:/data/todoedge.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Config はアプリケーション設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Mode は動作モード。
	Mode Mode
	// JWTSecret はトークン署名鍵。
	JWTSecret string
	// UpstreamURL は転送先TODOバックエンドのベースURL。
	UpstreamURL string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
	// DatabaseDriver は認証情報の保存先。
	DatabaseDriver Driver
	// DatabaseDSN はデータベース接続文字列。
	DatabaseDSN string
	// CookieName はセッションCookieの名前。
	CookieName string
	// CookieSecure はCookieにSecure属性を付けるかどうか。未指定時はproductionモードで有効になる。
	CookieSecure bool
	// TrustedProxies はX-Forwarded-Forを信用するプロキシのIPまたはCIDR。空の場合は接続元IPだけを使う。
	TrustedProxies []string
	// AuthRatePerSecond はサインイン・サインアップの1秒あたりの許容回数。
	AuthRatePerSecond float64
	// AuthRateBurst はサインイン・サインアップのバースト上限。
	AuthRateBurst int
}

// Load は環境変数から設定を読み込む。
// 値の形式が不正な場合はエラーを返す。内容の妥当性はValidateで確認する。
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOr("PORT", "8080"),
		Mode:           Mode(strings.ToLower(getEnvOr("APP_MODE", string(ModeDemo)))),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		UpstreamURL:    getEnvOr("UPSTREAM_URL", "http://localhost:8000"),
		FrontendURL:    getEnvOr("FRONTEND_URL", "http://localhost:3000"),
		DatabaseDriver: Driver(strings.ToLower(getEnvOr("DATABASE_DRIVER", string(DriverMemory)))),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		CookieName:     getEnvOr("SESSION_COOKIE_NAME", "todo_session"),
	}

	var err error
	secureDefault := strconv.FormatBool(cfg.Mode == ModeProduction)
	if cfg.CookieSecure, err = strconv.ParseBool(getEnvOr("COOKIE_SECURE", secureDefault)); err != nil {
		return nil, fmt.Errorf("COOKIE_SECUREの解析に失敗: %w", err)
	}
	if cfg.AuthRatePerSecond, err = strconv.ParseFloat(getEnvOr("AUTH_RATE_PER_SECOND", "1"), 64); err != nil {
		return nil, fmt.Errorf("AUTH_RATE_PER_SECONDの解析に失敗: %w", err)
	}
	if cfg.AuthRateBurst, err = strconv.Atoi(getEnvOr("AUTH_RATE_BURST", "10")); err != nil {
		return nil, fmt.Errorf("AUTH_RATE_BURSTの解析に失敗: %w", err)
	}

	cfg.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	if cfg.Mode == ModeDemo && cfg.JWTSecret == "" {
		cfg.JWTSecret = DemoJWTSecret
	}
	if cfg.DatabaseDriver == DriverSQLite && cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = defaultSQLiteDSN
	}
	return cfg, nil
}

// Validate は設定値の妥当性を検証する。
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.Mode, validation.Required, validation.In(ModeDemo, ModeProduction)),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In(DriverMemory, DriverSQLite, DriverPostgres)),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.AuthRatePerSecond, validation.Required, validation.Min(0.0)),
		validation.Field(&c.AuthRateBurst, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRETが設定されていません（demoモード以外では必須です）")
	}
	if err := validateHTTPURL(c.UpstreamURL); err != nil {
		return fmt.Errorf("UPSTREAM_URLが不正です: %w", err)
	}
	if c.DatabaseDriver == DriverPostgres && c.DatabaseDSN == "" {
		return errors.New("DATABASE_DRIVER=postgresではDATABASE_DSNが必須です")
	}
	for _, p := range c.TrustedProxies {
		if err := validateProxy(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIESが不正です: %w", err)
		}
	}
	return nil
}

// validateProxy はpがIPアドレスまたはCIDR表記であることを確認する。
func validateProxy(p string) error {
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err
	}
	if net.ParseIP(p) == nil {
		return fmt.Errorf("IPアドレスではありません: %q", p)
	}
	return nil
}

// splitList はカンマ区切りの値を空白を除いて分割する。空要素は捨てる。
func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// validateHTTPURL はrawがホストを含む絶対http(s) URLであることを確認する。
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("スキームはhttpまたはhttpsである必要があります: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("ホストが指定されていません: %q", raw)
	}
	return nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
