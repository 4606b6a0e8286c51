// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// セッショントークンの取り出しと検証、リクエストID、レート制限、
// パニックリカバリ、CORS設定など、エッジサービスの境界で使うミドルウェアを含む。
package middleware
