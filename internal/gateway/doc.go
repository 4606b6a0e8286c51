// Package gateway はTODOフロントエンド向けのAPI Gatewayを提供する。
//
// 認証エンドポイント（サインイン・サインアップ・セッション確認）と、
// ブラウザから直接到達できない上流TODOバックエンドへの転送を担当する。
// 転送時はAuthorizationヘッダーを検証せずそのまま上流に渡し、
// 検証は上流の責務とする。
package gateway
