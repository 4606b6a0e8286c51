// Package eventstore は認証の監査イベントをデータベースに追記保存する。
//
// event.Recorderを実装し、サインアップ・サインイン・サインイン失敗・サインアウトの
// イベントを追記のみで記録する。保存済みのイベントは更新も削除もしない。
// メールアドレス単位で新しい順に取得でき、ユーザー自身のアカウント操作履歴の
// 表示に使う。テーブル定義は認証情報ストアのマイグレーションに含まれる。
package eventstore
