package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/nao1215/todoedge/internal/apperr"
	"github.com/nao1215/todoedge/internal/obs"
	"github.com/nao1215/todoedge/pkg/httpclient"
)

// emptyObject はJSONとして解釈できない上流レスポンスの代わりに返すボディ。
var emptyObject = json.RawMessage(`{}`)

// allowedMethods は転送を許可するHTTPメソッド。
var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// ProxyRequest はPOST /api/proxyのリクエストボディ。
type ProxyRequest struct {
	// Endpoint は上流のベースURLに連結するパス。
	Endpoint string `json:"endpoint"`
	// Method はHTTPメソッド。省略時はGET。
	Method string `json:"method"`
	// Body は上流に送るJSONボディ。
	Body json.RawMessage `json:"body"`
}

// Descriptor は1回分の転送内容。
type Descriptor struct {
	// TargetPath は上流のベースURLに連結するパス。クエリ文字列を含んでよい。
	TargetPath string
	// Method はHTTPメソッド。空の場合はGET。
	Method string
	// Body は上流に送るJSONボディ。GET以外でのみ送信する。
	Body json.RawMessage
	// Authorization は受信したAuthorizationヘッダーの値。
	Authorization string
}

// Result は上流から受け取った転送結果。
type Result struct {
	// StatusCode は上流のステータスコード。
	StatusCode int
	// Body はクライアントに返すJSONボディ。204の場合は空。
	Body json.RawMessage
}

// Forwarder は上流TODOバックエンドへリクエストを1回だけ転送する。
// リトライやタイムアウトの上書きは行わない。
type Forwarder struct {
	client  *httpclient.Client
	metrics *obs.Metrics
}

// NewForwarder は新しいForwarderを生成する。metricsはnilでもよい。
func NewForwarder(client *httpclient.Client, metrics *obs.Metrics) *Forwarder {
	return &Forwarder{client: client, metrics: metrics}
}

// Descriptor はProxyRequestと受信したAuthorizationヘッダーから転送内容を組み立てる。
func (r ProxyRequest) Descriptor(authorization string) Descriptor {
	return Descriptor{
		TargetPath:    r.Endpoint,
		Method:        r.Method,
		Body:          r.Body,
		Authorization: authorization,
	}
}

// Forward は転送内容を上流に送り、ステータスコードとボディを返す。
//
// 上流が204を返した場合は空のボディを返す。それ以外でボディをJSONとして
// 解釈できない場合は空オブジェクトに置き換え、ステータスコードはそのまま返す。
// 上流に到達できない場合はapperr.KindUpstreamのエラーを返す。
func (f *Forwarder) Forward(ctx context.Context, d Descriptor) (*Result, error) {
	path := strings.TrimSpace(d.TargetPath)
	if path == "" {
		return nil, apperr.Validation(apperr.CodeMissingEndpoint, "endpointは必須です")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	method := strings.ToUpper(strings.TrimSpace(d.Method))
	if method == "" {
		method = http.MethodGet
	}
	if _, ok := allowedMethods[method]; !ok {
		return nil, apperr.Validation(apperr.CodeInvalidMethod, fmt.Sprintf("転送できないHTTPメソッドです: %s", method))
	}

	req := httpclient.Request{
		Method:        method,
		Path:          path,
		Authorization: d.Authorization,
	}
	if method != http.MethodGet && hasBody(d.Body) {
		req.Body = d.Body
	}

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		log.Printf("[Gateway] 上流サービスとの通信に失敗: method=%s, url=%s, error=%v", method, f.client.URL(path), err)
		f.metrics.ObserveUpstream(method, 0)
		return nil, apperr.Upstream(fmt.Sprintf("上流サービスとの通信に失敗しました: %s %s", method, path), err)
	}
	f.metrics.ObserveUpstream(method, resp.StatusCode)

	if resp.StatusCode == http.StatusNoContent {
		return &Result{StatusCode: resp.StatusCode}, nil
	}
	body := json.RawMessage(bytes.TrimSpace(resp.Body))
	if len(body) == 0 || !json.Valid(body) {
		body = emptyObject
	}
	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// hasBody はJSONボディが送信すべき値を持つかどうかを返す。
func hasBody(body json.RawMessage) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
