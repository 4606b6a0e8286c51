package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/todoedge/pkg/event"
)

// testSecret はテスト用の署名鍵。
const testSecret = "test-secret-key-for-unit-tests"

// fakeClock は任意に進められる時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// newFakeClock は指定時刻から始まる時計を生成する。
func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

// Now は現在時刻を返す。
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set は現在時刻を設定する。
func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memoryRecorder は記録されたイベントを保持するRecorder。
type memoryRecorder struct {
	mu     sync.Mutex
	events []*event.Event
}

// Record はイベントを保持する。
func (r *memoryRecorder) Record(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// types は記録されたイベント種別を順に返す。
func (r *memoryRecorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}

// newTestIssuer はインメモリストアと固定時計を使うIssuerを生成する。
func newTestIssuer(t *testing.T, clock *fakeClock, opts ...Option) *Issuer {
	t.Helper()

	base := []Option{WithClock(clock.Now), WithPasswordCost(bcrypt.MinCost)}
	issuer, err := NewIssuer(NewMemoryStore(), testSecret, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewIssuer()でエラーが発生: %v", err)
	}
	return issuer
}
