package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/todoedge/internal/apperr"
	"github.com/nao1215/todoedge/internal/auth"
)

// contextKeyClaims はGinコンテキストに検証済みクレームを格納するキー。
const contextKeyClaims = "session_claims"

// Verifier はトークンを検証してクレームを返す。無効な場合はnilを返す。
type Verifier interface {
	Verify(token string) *auth.Claims
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い場合や形式が違う場合は空文字列を返す。
func BearerToken(c *gin.Context) string {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// SessionToken はBearerトークン、無ければセッションCookieからトークンを取り出す。
func SessionToken(c *gin.Context, cookieName string) string {
	if token := BearerToken(c); token != "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return token
}

// RequireSession は有効なセッションを要求するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにクレームを設定する。
// トークンが無い場合と無効な場合は同じ401レスポンスを返す。
func RequireSession(v Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := v.Verify(SessionToken(c, cookieName))
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証が必要です",
				"code":  apperr.CodeUnauthenticated,
			})
			return
		}
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims はGinコンテキストから検証済みクレームを取得する。
// RequireSessionミドルウェアが事前に適用されている必要がある。
func GetClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(contextKeyClaims)
	if claims, ok := v.(*auth.Claims); ok {
		return claims
	}
	return nil
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return claims.SubjectID
	}
	return ""
}
