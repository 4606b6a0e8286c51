// Package httpclient は上流サービスへ1回だけリクエストを送るHTTPクライアントを提供する。
//
// ゲートウェイが受け取ったリクエストを上流サービスに中継する際に使用する。
// リトライやバックオフは行わず、ステータスコードとレスポンスボディを
// 加工せずに呼び出し元へ返す。
package httpclient
