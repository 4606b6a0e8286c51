package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	newRouter := func(seen *string) *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/", func(c *gin.Context) {
			*seen = GetRequestID(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("IDが無い場合は新しく採番すること", func(t *testing.T) {
		t.Parallel()

		var seen string
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		got := w.Header().Get(HeaderRequestID)
		if len(got) != 26 {
			t.Errorf("X-Request-ID = %q, want 26文字のULID", got)
		}
		if seen != got {
			t.Errorf("GetRequestID() = %q, want %q", seen, got)
		}
	})

	t.Run("呼び出し元のIDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		var seen string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-from-frontend")
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, req)

		if got := w.Header().Get(HeaderRequestID); got != "req-from-frontend" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-from-frontend")
		}
	})

	t.Run("長すぎるIDは採番し直すこと", func(t *testing.T) {
		t.Parallel()

		var seen string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLength+1))
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, req)

		if got := w.Header().Get(HeaderRequestID); len(got) != 26 {
			t.Errorf("X-Request-ID = %q, want 26文字のULID", got)
		}
	})

	t.Run("連続して採番したIDが重複しないこと", func(t *testing.T) {
		t.Parallel()

		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			id := newRequestID()
			if _, dup := seen[id]; dup {
				t.Fatalf("IDが重複した: %s", id)
			}
			seen[id] = struct{}{}
		}
	})
}
