package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openMemoryDB はテスト用のインメモリSQLiteを開く。
// :memory: は接続ごとに別のDBになるため接続数を1に固定する。
func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql":      {Data: []byte(`CREATE INDEX idx_items_name ON items(name);`)},
		"migrations/000001_create_items.up.sql":   {Data: []byte(`CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL);`)},
		"migrations/000001_create_items.down.sql": {Data: []byte(`DROP TABLE items;`)},
		"migrations/README.md":                    {Data: []byte(`ignored`)},
	}

	t.Run("バージョン順に適用し記録すること", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		if err := Run(db, SQLite, fsys, "migrations"); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 2 {
			t.Errorf("適用済み件数 = %d, want %d", count, 2)
		}
		if _, err := db.Exec("INSERT INTO items (id, name) VALUES ('1', 'a')"); err != nil {
			t.Errorf("itemsテーブルが作成されていない: %v", err)
		}
	})

	t.Run("2回目の実行では適用済みをスキップすること", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		if err := Run(db, SQLite, fsys, "migrations"); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		if err := Run(db, SQLite, fsys, "migrations"); err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
	})

	t.Run("SQLが不正な場合はエラーを返し記録しないこと", func(t *testing.T) {
		t.Parallel()

		db := openMemoryDB(t)
		broken := fstest.MapFS{
			"m/000001_broken.up.sql": {Data: []byte(`CREATE TABLE;`)},
		}
		if err := Run(db, SQLite, broken, "m"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("適用済み件数 = %d, want %d", count, 0)
		}
	})
}

// TestDialect は方言ごとのSQL断片を検証する。
func TestDialect(t *testing.T) {
	t.Parallel()

	if got := SQLite.BindVar(1); got != "?" {
		t.Errorf("SQLite.BindVar(1) = %q, want %q", got, "?")
	}
	if got := Postgres.BindVar(2); got != "$2" {
		t.Errorf("Postgres.BindVar(2) = %q, want %q", got, "$2")
	}
	if got := Postgres.String(); got != "postgres" {
		t.Errorf("Postgres.String() = %q, want %q", got, "postgres")
	}
}
