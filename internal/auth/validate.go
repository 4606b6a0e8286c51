package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/nao1215/todoedge/internal/apperr"
)

const (
	// MinPasswordLength は登録時に要求するパスワードの最小バイト数。
	MinPasswordLength = 8
	// maxPasswordLength はbcryptが扱えるパスワードの最大バイト数。
	maxPasswordLength = 72
	// maxDisplayNameLength は表示名の最大バイト数。
	maxDisplayNameLength = 200
)

// validateSignIn はサインイン入力の必須項目を検証する。
func validateSignIn(in SignInInput) error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	); err != nil {
		return apperr.Validation(apperr.CodeMissingField, err.Error())
	}
	return nil
}

// validateSignUp はサインアップ入力の必須項目と形式を検証する。
func validateSignUp(in SignUpInput) error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	); err != nil {
		return apperr.Validation(apperr.CodeMissingField, err.Error())
	}

	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, is.Email),
		validation.Field(&in.Password, validation.Length(MinPasswordLength, maxPasswordLength)),
		validation.Field(&in.Name, validation.Length(0, maxDisplayNameLength)),
	); err != nil {
		return apperr.Validation(apperr.CodeInvalidInput, err.Error())
	}
	return nil
}
