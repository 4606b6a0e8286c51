// Package postgres はPostgreSQLに認証情報を永続化するCredentialStoreを提供する。
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nao1215/todoedge/internal/auth"
	"github.com/nao1215/todoedge/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store はPostgreSQLを使うCredentialStore。
type Store struct {
	// db はPostgreSQLデータベース接続。
	db *sql.DB
}

var _ auth.CredentialStore = (*Store)(nil)

// Open はdsnのPostgreSQLに接続し、マイグレーションを適用する。
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if err := migration.Run(db, migration.Postgres, migrations, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return New(db), nil
}

// New は接続済みのdbからStoreを生成する。マイグレーションは適用しない。
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB は内部のデータベース接続を返す。監査イベントの保存先と共有する。
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByEmail はメールアドレスで認証情報を検索する。
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select subject_id, email, display_name, password_hash from credentials where email=$1`, email)

	var rec auth.CredentialRecord
	if err := row.Scan(&rec.SubjectID, &rec.Email, &rec.DisplayName, &rec.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrRecordNotFound
		}
		return nil, fmt.Errorf("認証情報の検索に失敗: %w", err)
	}
	return &rec, nil
}

// InsertIfAbsent はメールアドレスが未登録の場合に限り認証情報を登録する。
func (s *Store) InsertIfAbsent(ctx context.Context, rec *auth.CredentialRecord) error {
	res, err := s.db.ExecContext(ctx,
		`insert into credentials(subject_id, email, display_name, password_hash) values($1,$2,$3,$4) on conflict (email) do nothing`,
		rec.SubjectID, rec.Email, rec.DisplayName, rec.PasswordHash)
	if err != nil {
		return fmt.Errorf("認証情報の登録に失敗: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("登録件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return auth.ErrRecordExists
	}
	return nil
}
