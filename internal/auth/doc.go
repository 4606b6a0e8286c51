// Package auth はサインイン・サインアップを受け付けて署名付きトークンを発行し、
// 提示されたトークンを検証するCredential Issuerを提供する。
//
// セッションは完全にステートレスで、トークンの署名と有効期限だけで検証する。
// サーバーは発行済みトークンを記録しないため、失効させることはできない。
// 認証情報はCredentialStore経由で永続化し、パスワードはbcryptで照合する。
package auth
