package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/todoedge/internal/apperr"
	"github.com/nao1215/todoedge/internal/auth"
	"github.com/nao1215/todoedge/internal/config"
	"github.com/nao1215/todoedge/internal/obs"
	"github.com/nao1215/todoedge/pkg/event"
	"github.com/nao1215/todoedge/pkg/middleware"
)

// Authenticator はGatewayが利用する認証操作。*auth.Issuerが実装する。
type Authenticator interface {
	middleware.Verifier
	SignIn(ctx context.Context, in auth.SignInInput) (*auth.Session, error)
	SignUp(ctx context.Context, in auth.SignUpInput) (*auth.Session, error)
	CurrentSession(token string) *auth.SessionInfo
	SignOut(ctx context.Context, token string)
}

// ActivityLister はメールアドレス単位で監査イベントを取得する。*eventstore.Storeが実装する。
type ActivityLister interface {
	ListByEmail(ctx context.Context, email string, limit int) ([]*event.Event, error)
}

// ServerOption はServerの設定を変更する。
type ServerOption func(*Server)

// WithActivity はGET /api/auth/activityで使う監査イベントの取得元を設定する。
// 設定しない場合、このエンドポイントは登録されない。
func WithActivity(lister ActivityLister) ServerOption {
	return func(s *Server) {
		s.activity = lister
	}
}

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// auth はトークンの発行と検証を行う。
	auth Authenticator
	// forwarder は上流への転送を行う。
	forwarder *Forwarder
	// metrics はPrometheusメトリクス。nilの場合は計測しない。
	metrics *obs.Metrics
	// activity は監査イベントの取得元。nilの場合は履歴を提供しない。
	activity ActivityLister
	// cookieName はセッションCookieの名前。
	cookieName string
	// cookieSecure はCookieにSecure属性を付けるかどうか。
	cookieSecure bool
}

// NewServer は新しいGatewayサーバーを生成する。
// cfg.TrustedProxiesが空の場合はX-Forwarded-Forを信用せず、接続元IPでクライアントを識別する。
func NewServer(cfg *config.Config, authenticator Authenticator, forwarder *Forwarder, metrics *obs.Metrics, opts ...ServerOption) (*Server, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))
	router.Use(metrics.Instrument())

	s := &Server{
		router:       router,
		port:         cfg.Port,
		auth:         authenticator,
		forwarder:    forwarder,
		metrics:      metrics,
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes(cfg.AuthRatePerSecond, cfg.AuthRateBurst)

	return s, nil
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(ratePerSecond float64, rateBurst int) {
	authGroup := s.router.Group("/api/auth")
	{
		limited := authGroup.Group("", middleware.RateLimit(ratePerSecond, rateBurst))
		limited.POST("/signin", s.handleSignIn())
		limited.POST("/signup", s.handleSignUp())

		authGroup.GET("/session", s.handleSession())
		authGroup.GET("/me", middleware.RequireSession(s.auth, s.cookieName), s.handleMe())
		authGroup.POST("/signout", s.handleSignOut())
		if s.activity != nil {
			authGroup.GET("/activity", middleware.RequireSession(s.auth, s.cookieName), s.handleActivity())
		}
	}

	// 上流TODOバックエンドへの転送
	s.router.POST("/api/proxy", s.handleProxy())
	s.router.Any("/api/upstream/*path", s.handleUpstream())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// handleSignIn はサインインのハンドラを返す。
func (s *Server) handleSignIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in auth.SignInInput
		if err := c.ShouldBindJSON(&in); err != nil {
			s.writeError(c, apperr.Validation(apperr.CodeInvalidInput, "リクエストボディが不正です"))
			return
		}

		sess, err := s.auth.SignIn(c.Request.Context(), in)
		s.observeAuth("signin", err)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.setSessionCookie(c, sess.Token)
		c.JSON(http.StatusOK, sess)
	}
}

// handleSignUp はサインアップのハンドラを返す。
func (s *Server) handleSignUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in auth.SignUpInput
		if err := c.ShouldBindJSON(&in); err != nil {
			s.writeError(c, apperr.Validation(apperr.CodeInvalidInput, "リクエストボディが不正です"))
			return
		}

		sess, err := s.auth.SignUp(c.Request.Context(), in)
		s.observeAuth("signup", err)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.setSessionCookie(c, sess.Token)
		c.JSON(http.StatusCreated, sess)
	}
}

// handleSession は現在のセッションを返すハンドラを返す。
// トークンが無い場合も無効な場合も{"session": null}を返す。
func (s *Server) handleSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := s.auth.CurrentSession(middleware.SessionToken(c, s.cookieName))
		c.JSON(http.StatusOK, gin.H{"session": info})
	}
}

// handleMe はログイン中のユーザー情報を返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if claims == nil {
			s.writeError(c, apperr.Unauthorized(apperr.CodeUnauthenticated, "認証が必要です"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": claims.User(), "expires_at": claims.ExpiresAt})
	}
}

// handleActivity はログイン中ユーザーのアカウント操作履歴を新しい順に返すハンドラを返す。
// クエリパラメータlimitで件数を指定できる。
func (s *Server) handleActivity() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if claims == nil {
			s.writeError(c, apperr.Unauthorized(apperr.CodeUnauthenticated, "認証が必要です"))
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				s.writeError(c, apperr.Validation(apperr.CodeInvalidInput, "limitは1以上の整数で指定してください"))
				return
			}
			limit = n
		}

		events, err := s.activity.ListByEmail(c.Request.Context(), claims.Email, limit)
		if err != nil {
			s.writeError(c, apperr.Internal(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

// handleSignOut はセッションCookieを削除するハンドラを返す。
// トークン自体はステートレスなので有効期限まで失効しない。
func (s *Server) handleSignOut() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.auth.SignOut(c.Request.Context(), middleware.SessionToken(c, s.cookieName))
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookieName, "", -1, "/", "", s.cookieSecure, true)
		c.Status(http.StatusNoContent)
	}
}

// handleProxy は{endpoint, method, body}形式のリクエストを上流に転送するハンドラを返す。
func (s *Server) handleProxy() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProxyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, apperr.Validation(apperr.CodeInvalidInput, "リクエストボディが不正です"))
			return
		}
		s.forward(c, req.Descriptor(c.GetHeader("Authorization")))
	}
}

// handleUpstream はメソッド・パス・クエリ・ボディをそのまま上流に転送するハンドラを返す。
func (s *Server) handleUpstream() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			s.writeError(c, apperr.Validation(apperr.CodeInvalidInput, "リクエストボディの読み取りに失敗しました"))
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			s.writeError(c, apperr.Validation(apperr.CodeInvalidInput, "リクエストボディがJSONではありません"))
			return
		}

		path := c.Param("path")
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}
		s.forward(c, Descriptor{
			TargetPath:    path,
			Method:        c.Request.Method,
			Body:          body,
			Authorization: c.GetHeader("Authorization"),
		})
	}
}

// forward は転送を実行し、上流のステータスコードとボディを返す。
func (s *Server) forward(c *gin.Context, d Descriptor) {
	res, err := s.forwarder.Forward(c.Request.Context(), d)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.StatusCode == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(res.StatusCode, "application/json; charset=utf-8", res.Body)
}

// setSessionCookie はHttpOnlyかつSameSite=LaxのセッションCookieを設定する。
func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, token, int(auth.SessionTTL.Seconds()), "/", "", s.cookieSecure, true)
}

// observeAuth は認証操作の結果をメトリクスに記録する。
func (s *Server) observeAuth(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperr.As(err).Kind)
	}
	s.metrics.ObserveAuth(operation, outcome)
}

// writeError はエラーを{"error", "code"}形式で返す。
// 内部障害の詳細はログにのみ出力する。
func (s *Server) writeError(c *gin.Context, err error) {
	appErr := apperr.As(err)
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[Gateway] リクエスト処理に失敗: request_id=%s, path=%s, error=%v",
			middleware.GetRequestID(c), c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}
