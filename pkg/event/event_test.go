package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("データ付きのイベントを生成できること", func(t *testing.T) {
		t.Parallel()

		before := time.Now().UTC()
		ev, err := New(TypeUserSignedUp, "user-1", "alice@example.com", UserSignedUpData{DisplayName: "Alice"})
		after := time.Now().UTC()
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.EventType != TypeUserSignedUp {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeUserSignedUp)
		}
		if ev.SubjectID != "user-1" {
			t.Errorf("SubjectID = %q, want %q", ev.SubjectID, "user-1")
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		data, err := DecodeData[UserSignedUpData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if data.DisplayName != "Alice" {
			t.Errorf("DisplayName = %q, want %q", data.DisplayName, "Alice")
		}
	})

	t.Run("データがnilの場合はDataが空になること", func(t *testing.T) {
		t.Parallel()

		ev, err := New(TypeUserSignedOut, "user-2", "", nil)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if len(ev.Data) != 0 {
			t.Errorf("Data = %s, want empty", ev.Data)
		}
	})

	t.Run("シリアライズできないデータはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(TypeSignInFailed, "", "", make(chan int)); err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestLogRecorder はLogRecorderの出力を検証する。
func TestLogRecorder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	recorder := NewLogRecorder(log.New(&buf, "", 0))

	ev, err := New(TypeSignInFailed, "", "bob@example.com", SignInFailedData{Reason: "invalid_credentials"})
	if err != nil {
		t.Fatalf("New()でエラーが発生: %v", err)
	}
	if err := recorder.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record()でエラーが発生: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	payload, found := strings.CutPrefix(line, "[Audit] ")
	if !found {
		t.Fatalf("出力に[Audit]接頭辞が無い: %q", line)
	}

	var decoded Event
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("出力のパースに失敗: %v", err)
	}
	if decoded.EventType != TypeSignInFailed {
		t.Errorf("EventType = %q, want %q", decoded.EventType, TypeSignInFailed)
	}
	if decoded.Email != "bob@example.com" {
		t.Errorf("Email = %q, want %q", decoded.Email, "bob@example.com")
	}
}

// failingRecorder は常に失敗するRecorder。
type failingRecorder struct{ err error }

func (r failingRecorder) Record(context.Context, *Event) error { return r.err }

// countingRecorder は記録回数を数えるRecorder。
type countingRecorder struct{ n int }

func (r *countingRecorder) Record(context.Context, *Event) error {
	r.n++
	return nil
}

// TestMultiRecorder はMultiRecorderがすべての記録先に書き込むことを検証する。
func TestMultiRecorder(t *testing.T) {
	t.Parallel()

	errStore := errors.New("store down")
	first, last := &countingRecorder{}, &countingRecorder{}
	m := MultiRecorder{first, failingRecorder{err: errStore}, last, NopRecorder{}}

	ev, err := New(TypeUserSignedOut, "user-1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("New()でエラーが発生: %v", err)
	}

	err = m.Record(context.Background(), ev)
	if !errors.Is(err, errStore) {
		t.Errorf("Record() error = %v, want %v", err, errStore)
	}
	if first.n != 1 || last.n != 1 {
		t.Errorf("記録回数 = %d, %d, want 1, 1", first.n, last.n)
	}
	if err := (MultiRecorder{}).Record(context.Background(), ev); err != nil {
		t.Errorf("空のMultiRecorderがエラーを返した: %v", err)
	}
}
