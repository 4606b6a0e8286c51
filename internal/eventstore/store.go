package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nao1215/todoedge/pkg/event"
	"github.com/nao1215/todoedge/pkg/migration"
)

// DefaultListLimit はListByEmailで件数を指定しない場合の取得件数。
const DefaultListLimit = 50

// maxListLimit はListByEmailで取得できる最大件数。
const maxListLimit = 200

// Store は監査イベントの保存先。
type Store struct {
	// db はデータベース接続。
	db *sql.DB
	// insertQuery はイベント追記のクエリ。
	insertQuery string
	// listByEmailQuery はメールアドレス単位の取得クエリ。
	listByEmailQuery string
}

var _ event.Recorder = (*Store)(nil)

// New は接続済みのdbからStoreを生成する。
// auth_eventsテーブルは事前にマイグレーションで作成しておく必要がある。
func New(db *sql.DB, dialect migration.Dialect) *Store {
	return &Store{
		db: db,
		insertQuery: fmt.Sprintf(
			"INSERT INTO auth_events (id, event_type, subject_id, email, data, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
			dialect.BindVar(1), dialect.BindVar(2), dialect.BindVar(3),
			dialect.BindVar(4), dialect.BindVar(5), dialect.BindVar(6),
		),
		listByEmailQuery: fmt.Sprintf(
			"SELECT id, event_type, subject_id, email, data, created_at FROM auth_events WHERE email = %s ORDER BY created_at DESC, id DESC LIMIT %s",
			dialect.BindVar(1), dialect.BindVar(2),
		),
	}
}

// Record はイベントを1件追記する。
func (s *Store) Record(ctx context.Context, e *event.Event) error {
	var data sql.NullString
	if len(e.Data) > 0 {
		data = sql.NullString{String: string(e.Data), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.insertQuery,
		e.ID, string(e.EventType), e.SubjectID, e.Email, data, e.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("監査イベントの保存に失敗: %w", err)
	}
	return nil
}

// ListByEmail はメールアドレスに紐づくイベントを新しい順に最大limit件返す。
// limitが0以下の場合はDefaultListLimitを使う。
func (s *Store) ListByEmail(ctx context.Context, email string, limit int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := s.db.QueryContext(ctx, s.listByEmailQuery, email, limit)
	if err != nil {
		return nil, fmt.Errorf("監査イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*event.Event, 0)
	for rows.Next() {
		var (
			e         event.Event
			eventType string
			data      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &eventType, &e.SubjectID, &e.Email, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("監査イベントの読み取りに失敗: %w", err)
		}
		e.EventType = event.Type(eventType)
		if data.Valid {
			e.Data = []byte(data.String)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監査イベントの読み取りに失敗: %w", err)
	}
	return events, nil
}
