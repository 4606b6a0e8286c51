// Package event は認証まわりの監査イベントを表現する。
//
// サインアップ・サインイン・サインアウトの結果を不変のイベントとして生成し、
// Recorderを通じて記録する。LogRecorderは1イベント1行のJSONログとして出力し、
// MultiRecorderで複数の記録先に同時に書き込める。
package event
