// Package sqlite はSQLiteに認証情報を永続化するCredentialStoreを提供する。
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nao1215/todoedge/internal/auth"
	"github.com/nao1215/todoedge/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store はSQLiteを使うCredentialStore。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

var _ auth.CredentialStore = (*Store)(nil)

// Open はdsnのSQLiteデータベースを開き、マイグレーションを適用する。
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dsn == ":memory:" {
		// :memory: は接続ごとに別のDBになる
		db.SetMaxOpenConns(1)
	}

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New は接続済みのdbからStoreを生成し、マイグレーションを適用する。
func New(db *sql.DB) (*Store, error) {
	if err := migration.Run(db, migration.SQLite, migrations, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
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
		`SELECT subject_id, email, display_name, password_hash FROM credentials WHERE email = ?`, email)

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
		`INSERT INTO credentials (subject_id, email, display_name, password_hash)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (email) DO NOTHING`,
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
