package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind string

const (
	// KindValidation は入力の欠落や形式不正を表す。
	KindValidation Kind = "validation"
	// KindAuth は認証情報の不一致やトークンの無効を表す。
	KindAuth Kind = "auth"
	// KindConflict は既に存在するアイデンティティとの重複を表す。
	KindConflict Kind = "conflict"
	// KindUpstream は上流サービスとの通信失敗を表す。
	KindUpstream Kind = "upstream"
	// KindInternal は想定外の内部障害を表す。
	KindInternal Kind = "internal"
)

// Code はクライアントに返す安定したエラーコード。
type Code string

const (
	// CodeMissingField は必須項目が空であることを表す。
	CodeMissingField Code = "missing_field"
	// CodeInvalidInput は項目の形式が不正であることを表す。
	CodeInvalidInput Code = "invalid_input"
	// CodeInvalidCredentials はメールアドレスまたはパスワードの不一致を表す。
	CodeInvalidCredentials Code = "invalid_credentials"
	// CodeUnauthenticated は有効なセッションが無いことを表す。
	CodeUnauthenticated Code = "unauthenticated"
	// CodeDuplicateUser はメールアドレスが登録済みであることを表す。
	CodeDuplicateUser Code = "duplicate_user"
	// CodeMissingEndpoint は転送先パスが指定されていないことを表す。
	CodeMissingEndpoint Code = "missing_endpoint"
	// CodeInvalidMethod は転送できないHTTPメソッドが指定されたことを表す。
	CodeInvalidMethod Code = "invalid_method"
	// CodeUpstreamUnreachable は上流サービスに到達できないことを表す。
	CodeUpstreamUnreachable Code = "upstream_unreachable"
	// CodeRateLimited はリクエスト数の上限を超えたことを表す。
	CodeRateLimited Code = "rate_limited"
	// CodeInternal は内部障害を表す。
	CodeInternal Code = "internal_error"
)

// internalMessage は内部障害時にクライアントへ返す汎用メッセージ。
const internalMessage = "内部サーバーエラーが発生しました"

// Error は分類とコードを持つアプリケーションエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Code はクライアント向けのエラーコード。
	Code Code
	// Message はクライアントに返してよいメッセージ。
	Message string
	// Err は原因となったエラー。クライアントには返さない。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation は入力検証エラーを生成する。
func Validation(code Code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Unauthorized は認証エラーを生成する。
func Unauthorized(code Code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// Conflict は重複エラーを生成する。
func Conflict(code Code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Upstream は上流通信エラーを生成する。
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: CodeUpstreamUnreachable, Message: message, Err: err}
}

// Internal は内部障害エラーを生成する。メッセージは常に汎用文言になる。
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: internalMessage, Err: err}
}

// As はerrから*Errorを取り出す。分類されていないエラーは内部障害として扱う。
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HTTPStatus はエラー分類に対応するHTTPステータスコードを返す。
// 重複エラーは登録フォームの入力エラーとして400を返す。
func HTTPStatus(err error) int {
	switch As(err).Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
