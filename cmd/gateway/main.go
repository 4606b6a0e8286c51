// API Gatewayサービスのエントリポイント。
// サインイン・サインアップによるトークン発行と、上流TODOバックエンドへの転送を担当する。
// ブラウザからアクセスされる唯一のサービスであり、認証の境界線となる。
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/todoedge/internal/auth"
	"github.com/nao1215/todoedge/internal/config"
	"github.com/nao1215/todoedge/internal/eventstore"
	"github.com/nao1215/todoedge/internal/gateway"
	"github.com/nao1215/todoedge/internal/obs"
	"github.com/nao1215/todoedge/internal/store/postgres"
	"github.com/nao1215/todoedge/internal/store/sqlite"
	"github.com/nao1215/todoedge/pkg/event"
	"github.com/nao1215/todoedge/pkg/httpclient"
	"github.com/nao1215/todoedge/pkg/migration"
)

// version はビルド時に-ldflagsで埋め込むバージョン。
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}
	if cfg.Mode == config.ModeDemo && cfg.JWTSecret == config.DemoJWTSecret {
		log.Printf("[Gateway] 警告: デモ用の署名鍵を使用しています。本番環境ではJWT_SECRETを設定してください")
	}

	store, events, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("認証情報ストアの初期化に失敗: %v", err)
	}
	defer closeStore()

	recorder := event.MultiRecorder{event.NewLogRecorder(log.Default())}
	var serverOpts []gateway.ServerOption
	if events != nil {
		recorder = append(recorder, events)
		serverOpts = append(serverOpts, gateway.WithActivity(events))
	}

	issuer, err := auth.NewIssuer(store, cfg.JWTSecret, auth.WithRecorder(recorder))
	if err != nil {
		log.Fatalf("Issuerの初期化に失敗: %v", err)
	}

	metrics := obs.New(prometheus.DefaultRegisterer)
	metrics.SetBuildInfo(version)

	forwarder := gateway.NewForwarder(httpclient.New(cfg.UpstreamURL), metrics)
	server, err := gateway.NewServer(cfg, issuer, forwarder, metrics, serverOpts...)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s (mode=%s, store=%s, upstream=%s)",
		cfg.Port, cfg.Mode, cfg.DatabaseDriver, cfg.UpstreamURL)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}

// openStore は設定に応じた認証情報ストアを開く。
// 永続化するドライバーでは同じデータベースに監査イベントも保存する。
// 返される関数はストアを閉じる。
func openStore(ctx context.Context, cfg *config.Config) (auth.CredentialStore, *eventstore.Store, func(), error) {
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		log.Printf("[Gateway] 認証情報はメモリに保存されます。再起動すると消えます")
		return auth.NewMemoryStore(), nil, func() {}, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, eventstore.New(s.DB(), migration.SQLite), closeOrLog(s.Close), nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, eventstore.New(s.DB(), migration.Postgres), closeOrLog(s.Close), nil
	default:
		return nil, nil, nil, fmt.Errorf("未対応のDATABASE_DRIVERです: %s", cfg.DatabaseDriver)
	}
}

// closeOrLog はクローズ処理の失敗をログに出力する関数を返す。
func closeOrLog(closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil {
			log.Printf("[Gateway] 認証情報ストアのクローズに失敗: %v", err)
		}
	}
}
