package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeUserSignedUp はユーザーが新規登録されたことを表す。
	TypeUserSignedUp Type = "UserSignedUp"
	// TypeUserSignedIn はユーザーがサインインしたことを表す。
	TypeUserSignedIn Type = "UserSignedIn"
	// TypeSignInFailed はサインインが失敗したことを表す。
	TypeSignInFailed Type = "SignInFailed"
	// TypeUserSignedOut はユーザーがサインアウトしたことを表す。
	TypeUserSignedOut Type = "UserSignedOut"
)

// Event は監査ログに出力される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// SubjectID は対象ユーザーの識別子。失敗イベントでは空になる。
	SubjectID string `json:"subject_id,omitempty"`
	// Email は対象のメールアドレス。
	Email string `json:"email,omitempty"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data,omitempty"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// SignInFailedData はSignInFailedイベントのデータ。
type SignInFailedData struct {
	// Reason は失敗の理由を表すエラーコード。
	Reason string `json:"reason"`
}

// UserSignedUpData はUserSignedUpイベントのデータ。
type UserSignedUpData struct {
	// DisplayName は登録された表示名。
	DisplayName string `json:"display_name"`
}
