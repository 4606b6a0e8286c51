// Package apperr はエッジサービス全体で共有するエラー分類を提供する。
//
// 入力検証・認証・重複・上流通信・内部障害の5種類に分類し、
// HTTPステータスコードへの対応付けを一箇所に集約する。
package apperr
