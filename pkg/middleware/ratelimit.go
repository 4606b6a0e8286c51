package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nao1215/todoedge/internal/apperr"
)

// bucketTTL はアクセスの無いクライアントのバケットを破棄するまでの時間。
const bucketTTL = 5 * time.Minute

// RateLimit はクライアントIPごとのトークンバケットでリクエスト数を制限するGinミドルウェアを返す。
// 上限を超えたリクエストには429を返す。
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	type bucket struct {
		lim      *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastSweep = time.Now()
	)

	allow := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastSweep) > time.Minute {
			for k, b := range buckets {
				if now.Sub(b.lastSeen) > bucketTTL {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}

		b, ok := buckets[ip]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
			buckets[ip] = b
		}
		b.lastSeen = now
		return b.lim.Allow()
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエストが多すぎます。しばらくしてから再試行してください",
				"code":  apperr.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}
