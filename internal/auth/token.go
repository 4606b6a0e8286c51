package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL はトークンの有効期間。発行時に固定され、延長されることはない。
const SessionTTL = 7 * 24 * time.Hour

// DefaultTokenIssuer はトークンのissクレームの既定値。
const DefaultTokenIssuer = "todoedge"

// Claims は検証済みトークンに含まれるアイデンティティ情報。
type Claims struct {
	// SubjectID はユーザーの一意識別子（sub）。
	SubjectID string
	// Email はメールアドレス。
	Email string
	// DisplayName は表示名（name）。
	DisplayName string
	// IssuedAt は発行日時（iat）。
	IssuedAt time.Time
	// ExpiresAt は有効期限（exp）。この時刻ちょうどで失効する。
	ExpiresAt time.Time
}

// User はクレームを公開用のユーザー情報に変換する。
func (c *Claims) User() User {
	return User{ID: c.SubjectID, Email: c.Email, Name: c.DisplayName}
}

// tokenClaims はJWTペイロードの直列化形式。
type tokenClaims struct {
	jwt.RegisteredClaims
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
}

// signToken はクレームをHS256で署名したトークン文字列を返す。
func signToken(secret []byte, issuer string, c Claims) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.SubjectID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
		Email: c.Email,
		Name:  c.DisplayName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// parseToken はトークンの署名・アルゴリズム・発行者・有効期限を検証してクレームを返す。
func parseToken(secret []byte, issuer string, now func() time.Time, token string) (*Claims, error) {
	tc := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, tc, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if tc.Subject == "" || tc.IssuedAt == nil {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}

	return &Claims{
		SubjectID:   tc.Subject,
		Email:       tc.Email,
		DisplayName: tc.Name,
		IssuedAt:    tc.IssuedAt.UTC(),
		ExpiresAt:   tc.ExpiresAt.UTC(),
	}, nil
}
