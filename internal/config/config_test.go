package config

import (
	"strings"
	"testing"
)

// clearEnv はテストに関係する環境変数を空にする。
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "APP_MODE", "JWT_SECRET", "UPSTREAM_URL", "FRONTEND_URL",
		"DATABASE_DRIVER", "DATABASE_DSN", "SESSION_COOKIE_NAME", "COOKIE_SECURE",
		"AUTH_RATE_PER_SECOND", "AUTH_RATE_BURST", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}
}

// TestLoad は環境変数からの設定読み込みを検証する。
func TestLoad(t *testing.T) {
	t.Run("未設定の場合はデフォルト値を使うこと", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.Mode != ModeDemo {
			t.Errorf("Mode = %q, want %q", cfg.Mode, ModeDemo)
		}
		if cfg.JWTSecret != DemoJWTSecret {
			t.Errorf("JWTSecret = %q, want デモ用の署名鍵", cfg.JWTSecret)
		}
		if cfg.DatabaseDriver != DriverMemory {
			t.Errorf("DatabaseDriver = %q, want %q", cfg.DatabaseDriver, DriverMemory)
		}
		if cfg.CookieName != "todo_session" {
			t.Errorf("CookieName = %q, want %q", cfg.CookieName, "todo_session")
		}
		if cfg.CookieSecure {
			t.Error("demoモードのCookieSecure = true, want false")
		}
		if len(cfg.TrustedProxies) != 0 {
			t.Errorf("TrustedProxies = %v, want 空", cfg.TrustedProxies)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("環境変数の値を反映すること", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "9090")
		t.Setenv("APP_MODE", "production")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("UPSTREAM_URL", "https://api.example.com")
		t.Setenv("DATABASE_DRIVER", "sqlite")
		t.Setenv("COOKIE_SECURE", "true")
		t.Setenv("AUTH_RATE_PER_SECOND", "2.5")
		t.Setenv("AUTH_RATE_BURST", "4")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "9090" || cfg.Mode != ModeProduction || cfg.JWTSecret != "s3cret" {
			t.Errorf("cfg = %+v", cfg)
		}
		if !cfg.CookieSecure {
			t.Error("CookieSecure = false, want true")
		}
		if cfg.AuthRatePerSecond != 2.5 || cfg.AuthRateBurst != 4 {
			t.Errorf("rate = %v/%d, want 2.5/4", cfg.AuthRatePerSecond, cfg.AuthRateBurst)
		}
		if !strings.HasPrefix(cfg.DatabaseDSN, "file:") {
			t.Errorf("DatabaseDSN = %q, want SQLiteの既定値", cfg.DatabaseDSN)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("productionモードではCOOKIE_SECURE未指定でSecure属性を有効にすること", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_MODE", "production")
		t.Setenv("JWT_SECRET", "s3cret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate()でエラーが発生: %v", err)
		}
		if !cfg.CookieSecure {
			t.Error("CookieSecure = false, want true")
		}
	})

	t.Run("COOKIE_SECUREの明示指定を優先すること", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("COOKIE_SECURE", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if !cfg.CookieSecure {
			t.Error("demoモードでCOOKIE_SECURE=trueなのにCookieSecure = false")
		}
	})

	t.Run("TRUSTED_PROXIESをカンマ区切りで読み込むこと", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.10 ")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		want := []string{"10.0.0.0/8", "192.0.2.10"}
		if len(cfg.TrustedProxies) != len(want) || cfg.TrustedProxies[0] != want[0] || cfg.TrustedProxies[1] != want[1] {
			t.Errorf("TrustedProxies = %v, want %v", cfg.TrustedProxies, want)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("数値の形式が不正な場合はエラーを返すこと", func(t *testing.T) {
		for _, kv := range [][2]string{
			{"COOKIE_SECURE", "maybe"},
			{"AUTH_RATE_PER_SECOND", "fast"},
			{"AUTH_RATE_BURST", "1.5"},
		} {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s: エラーが返されなかった", kv[0], kv[1])
			}
		}
	})
}

// TestValidate は設定値の検証を検証する。
func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Port:              "8080",
			Mode:              ModeProduction,
			JWTSecret:         "s3cret",
			UpstreamURL:       "http://backend:8000",
			DatabaseDriver:    DriverMemory,
			CookieName:        "todo_session",
			AuthRatePerSecond: 1,
			AuthRateBurst:     10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "正常な設定", mutate: func(*Config) {}, wantErr: false},
		{name: "本番モードで署名鍵が空", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "未知のモード", mutate: func(c *Config) { c.Mode = "staging" }, wantErr: true},
		{name: "未知のドライバー", mutate: func(c *Config) { c.DatabaseDriver = "mysql" }, wantErr: true},
		{name: "相対URL", mutate: func(c *Config) { c.UpstreamURL = "/api" }, wantErr: true},
		{name: "http以外のスキーム", mutate: func(c *Config) { c.UpstreamURL = "ftp://backend" }, wantErr: true},
		{name: "ポート未指定", mutate: func(c *Config) { c.Port = "" }, wantErr: true},
		{name: "バーストが0", mutate: func(c *Config) { c.AuthRateBurst = 0 }, wantErr: true},
		{name: "レートが0", mutate: func(c *Config) { c.AuthRatePerSecond = 0 }, wantErr: true},
		{name: "レートが負", mutate: func(c *Config) { c.AuthRatePerSecond = -1 }, wantErr: true},
		{name: "プロキシがIPでもCIDRでもない", mutate: func(c *Config) { c.TrustedProxies = []string{"proxy.local"} }, wantErr: true},
		{name: "プロキシのCIDRが不正", mutate: func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/99"} }, wantErr: true},
		{name: "プロキシが正しい", mutate: func(c *Config) { c.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12"} }, wantErr: false},
		{name: "postgresでDSNが空", mutate: func(c *Config) { c.DatabaseDriver = DriverPostgres }, wantErr: true},
		{
			name: "postgresでDSNあり",
			mutate: func(c *Config) {
				c.DatabaseDriver = DriverPostgres
				c.DatabaseDSN = "postgres://user:pass@db:5432/todo"
			},
			wantErr: false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
