package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/todoedge/internal/apperr"
	"github.com/nao1215/todoedge/pkg/event"
)

// msgInvalidCredentials はメールアドレス不明とパスワード不一致で共通のメッセージ。
const msgInvalidCredentials = "メールアドレスまたはパスワードが正しくありません"

// SignInInput はサインインの入力。
type SignInInput struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password は平文パスワード。
	Password string `json:"password"`
}

// SignUpInput はサインアップの入力。
type SignUpInput struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password は平文パスワード。
	Password string `json:"password"`
	// Name は表示名。省略時はメールアドレスを使う。
	Name string `json:"name"`
}

// User はクライアントに返してよい公開用のユーザー情報。
type User struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
}

// Session は発行されたトークンと公開用ユーザー情報の組。
type Session struct {
	// Token は署名済みトークン。
	Token string `json:"token"`
	// User は公開用ユーザー情報。
	User User `json:"user"`
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionInfo はセッション確認の結果。
type SessionInfo struct {
	// User は公開用ユーザー情報。
	User User `json:"user"`
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer はトークンの発行と検証を行う。
// 署名鍵とCredentialStore以外の状態を持たず、並行に呼び出してよい。
type Issuer struct {
	// store は認証情報の永続化層。
	store CredentialStore
	// secret はHS256の署名鍵。
	secret []byte
	// tokenIssuer はissクレームの値。
	tokenIssuer string
	// now は現在時刻を返す関数。
	now func() time.Time
	// newID はユーザーIDを生成する関数。
	newID func() string
	// passwordCost はbcryptのコスト。
	passwordCost int
	// dummyHash は未登録メールアドレスでも照合コストを揃えるためのハッシュ。
	dummyHash string
	// recorder は監査イベントの記録先。
	recorder event.Recorder
}

// Option はIssuerの設定を変更する。
type Option func(*Issuer)

// WithClock は現在時刻を返す関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithIDGenerator はユーザーIDの生成関数を差し替える。
func WithIDGenerator(newID func() string) Option {
	return func(i *Issuer) {
		if newID != nil {
			i.newID = newID
		}
	}
}

// WithPasswordCost はbcryptのコストを変更する。
func WithPasswordCost(cost int) Option {
	return func(i *Issuer) {
		i.passwordCost = cost
	}
}

// WithRecorder は監査イベントの記録先を設定する。
func WithRecorder(r event.Recorder) Option {
	return func(i *Issuer) {
		if r != nil {
			i.recorder = r
		}
	}
}

// WithTokenIssuer はissクレームの値を変更する。
func WithTokenIssuer(iss string) Option {
	return func(i *Issuer) {
		if iss = strings.TrimSpace(iss); iss != "" {
			i.tokenIssuer = iss
		}
	}
}

// NewIssuer は新しいIssuerを生成する。
func NewIssuer(store CredentialStore, secret string, opts ...Option) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}

	i := &Issuer{
		store:        store,
		secret:       []byte(secret),
		tokenIssuer:  DefaultTokenIssuer,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
		passwordCost: bcrypt.DefaultCost,
		recorder:     event.NopRecorder{},
	}
	for _, opt := range opts {
		opt(i)
	}

	dummy, err := HashPassword(uuid.New().String(), i.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("auth: ダミーハッシュの生成に失敗: %w", err)
	}
	i.dummyHash = dummy

	return i, nil
}

// SignIn は登録済みの認証情報と照合してトークンを発行する。
// メールアドレスが未登録の場合もパスワード不一致の場合も同じエラーを返す。
func (i *Issuer) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateSignIn(in); err != nil {
		i.recordFailure(ctx, in.Email, err)
		return nil, err
	}

	// bcryptは72バイトを超える部分を無視するため、登録時と同じ上限を超える入力は照合しない
	if len(in.Password) > maxPasswordLength {
		authErr := apperr.Unauthorized(apperr.CodeInvalidCredentials, msgInvalidCredentials)
		i.recordFailure(ctx, in.Email, authErr)
		return nil, authErr
	}

	rec, err := i.store.FindByEmail(ctx, in.Email)
	if errors.Is(err, ErrRecordNotFound) {
		_ = ComparePassword(i.dummyHash, in.Password)
		authErr := apperr.Unauthorized(apperr.CodeInvalidCredentials, msgInvalidCredentials)
		i.recordFailure(ctx, in.Email, authErr)
		return nil, authErr
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("認証情報の取得に失敗: %w", err))
	}

	if err := ComparePassword(rec.PasswordHash, in.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			authErr := apperr.Unauthorized(apperr.CodeInvalidCredentials, msgInvalidCredentials)
			i.recordFailure(ctx, in.Email, authErr)
			return nil, authErr
		}
		return nil, apperr.Internal(fmt.Errorf("パスワードの照合に失敗: %w", err))
	}

	sess, err := i.issue(rec.SubjectID, rec.Email, displayName(rec.DisplayName, rec.Email))
	if err != nil {
		return nil, err
	}
	i.record(ctx, event.TypeUserSignedIn, sess.User.ID, sess.User.Email, nil)
	return sess, nil
}

// SignUp は新しい認証情報を登録してトークンを発行する。
// 同じメールアドレスが登録済みの場合は重複エラーを返し、既存の登録は変更しない。
func (i *Issuer) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateSignUp(in); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password, i.passwordCost)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("パスワードのハッシュ化に失敗: %w", err))
	}

	name := in.Name
	if name == "" {
		name = in.Email
	}
	rec := &CredentialRecord{
		SubjectID:    i.newID(),
		Email:        in.Email,
		DisplayName:  name,
		PasswordHash: hash,
	}
	if err := i.store.InsertIfAbsent(ctx, rec); err != nil {
		if errors.Is(err, ErrRecordExists) {
			return nil, apperr.Conflict(apperr.CodeDuplicateUser, "このメールアドレスは既に登録されています")
		}
		return nil, apperr.Internal(fmt.Errorf("認証情報の登録に失敗: %w", err))
	}
	i.record(ctx, event.TypeUserSignedUp, rec.SubjectID, rec.Email, event.UserSignedUpData{DisplayName: rec.DisplayName})

	return i.issue(rec.SubjectID, rec.Email, rec.DisplayName)
}

// Verify はトークンを検証してクレームを返す。
// 署名不正・形式不正・期限切れ・空文字列のいずれでもnilを返し、エラーにはしない。
func (i *Issuer) Verify(token string) *Claims {
	if token == "" {
		return nil
	}
	claims, err := parseToken(i.secret, i.tokenIssuer, i.now, token)
	if err != nil {
		return nil
	}
	return claims
}

// CurrentSession は現在のセッション情報を返す。
// トークンが無い場合と無効な場合を区別せず、どちらもnilを返す。
func (i *Issuer) CurrentSession(token string) *SessionInfo {
	claims := i.Verify(token)
	if claims == nil {
		return nil
	}
	return &SessionInfo{User: claims.User(), ExpiresAt: claims.ExpiresAt}
}

// SignOut はサインアウトを監査ログに記録する。
// トークンはステートレスなので失効させず、クライアント側で破棄する。
func (i *Issuer) SignOut(ctx context.Context, token string) {
	if claims := i.Verify(token); claims != nil {
		i.record(ctx, event.TypeUserSignedOut, claims.SubjectID, claims.Email, nil)
	}
}

// issue はクレームを組み立てて署名し、セッションを返す。
func (i *Issuer) issue(subjectID, email, name string) (*Session, error) {
	issuedAt := i.now().UTC().Truncate(time.Second)
	claims := Claims{
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: name,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(SessionTTL),
	}

	token, err := signToken(i.secret, i.tokenIssuer, claims)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{Token: token, User: claims.User(), ExpiresAt: claims.ExpiresAt}, nil
}

// recordFailure はサインイン失敗イベントを記録する。
func (i *Issuer) recordFailure(ctx context.Context, email string, err error) {
	i.record(ctx, event.TypeSignInFailed, "", email, event.SignInFailedData{Reason: string(apperr.As(err).Code)})
}

// record は監査イベントを記録する。記録の失敗は認証結果に影響させない。
func (i *Issuer) record(ctx context.Context, t event.Type, subjectID, email string, data any) {
	ev, err := event.New(t, subjectID, email, data)
	if err == nil {
		err = i.recorder.Record(ctx, ev)
	}
	if err != nil {
		log.Printf("[Auth] 監査イベントの記録に失敗: type=%s, error=%v", t, err)
	}
}

// normalizeEmail はメールアドレスの前後の空白を除き小文字に揃える。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// displayName は表示名を返す。空の場合はメールアドレスの@より前を使う。
func displayName(name, email string) string {
	if name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
