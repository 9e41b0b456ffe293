// Package postgrest はSupabase（PostgREST）のREST APIに対するクエリ実行を提供する。
// query.Query を postgrest-go のクエリビルダーに変換し、結果やエラーをそのまま呼び出し元へ返す。
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	pgrst "github.com/supabase-community/postgrest-go"

	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/query"
)

const (
	// restPath はSupabaseプロジェクトURL配下のPostgRESTエンドポイント。
	restPath = "/rest/v1"
	// maxErrorBodySize はエラーレスポンスとして読み取る最大サイズ。
	maxErrorBodySize = 64 * 1024
)

// Client はPostgRESTのクライアント。
// プロジェクトURLとAPIキーを保持し、query.Executor を実装する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	headers    map[string]string
}

// NewClient はClientの新しいインスタンスを生成する。
// projectURLは "https://xxxx.supabase.co" のようなプロジェクトのURLを指定する。
// httpClientのTransportとTimeoutをリクエストごとに適用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, projectURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(projectURL, "/") + restPath,
		headers: map[string]string{
			"apikey":        apiKey,
			"Authorization": "Bearer " + apiKey,
		},
	}
}

// errorBody はPostgRESTのエラーレスポンスのボディ。
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Execute はクエリをPostgRESTへ送信し、結果をdestにデコードする。
// 2xx以外のレスポンスは *model.RemoteError として返す。
func (c *Client) Execute(ctx context.Context, q query.Query, dest any) error {
	if c.httpClient.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	call := &callTransport{ctx: ctx, next: c.httpClient.Transport}
	if call.next == nil {
		call.next = http.DefaultTransport
	}

	rest := pgrst.NewClient(c.baseURL, "", c.headers)
	if rest.ClientError != nil {
		return fmt.Errorf("PostgRESTクライアントの生成に失敗しました: %w", rest.ClientError)
	}
	rest.Transport.Parent = call

	builder, err := buildFilter(rest, q)
	if err != nil {
		return err
	}

	body, _, err := builder.Execute()
	if remoteErr := call.remoteError(); remoteErr != nil {
		c.logger.Error("PostgRESTがエラーステータスを返しました",
			slog.Int("http_status", remoteErr.Status),
			slog.String("code", remoteErr.Code),
			slog.String("table", q.Table),
			slog.String("op", string(q.Op)),
		)
		return remoteErr
	}
	if err != nil {
		c.logger.Error("PostgRESTの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("table", q.Table),
			slog.String("op", string(q.Op)),
		)
		return err
	}

	if dest == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		c.logger.Error("PostgRESTのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("table", q.Table),
		)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// buildFilter はクエリを postgrest-go のビルダーに変換する。
func buildFilter(rest *pgrst.Client, q query.Query) (*pgrst.FilterBuilder, error) {
	from := rest.From(q.Table)

	var f *pgrst.FilterBuilder
	switch q.Op {
	case query.OpSelect:
		f = from.Select(q.SelectedColumns(), "", false)
	case query.OpInsert:
		f = from.Insert(q.Body, false, "", "representation", "")
	case query.OpUpsert:
		f = from.Upsert(q.Body, strings.Join(q.OnConflict, ","), "representation", "")
	case query.OpUpdate:
		f = from.Update(q.Body, "representation", "")
	default:
		return nil, fmt.Errorf("unsupported operation: %q", q.Op)
	}

	for _, filter := range q.Filters {
		f = f.Eq(filter.Column, filter.Value)
	}
	if q.Order != nil {
		f = f.Order(q.Order.Column, &pgrst.OrderOpts{Ascending: q.Order.Ascending})
	}
	if q.Single {
		f = f.Single()
	}
	return f, nil
}

// callTransport は1回の呼び出しにコンテキストを適用し、エラーレスポンスのボディを保持する。
// postgrest-go はエラーをコードとメッセージだけの文字列にするため、details と hint をここで取り出す。
type callTransport struct {
	ctx  context.Context
	next http.RoundTripper

	mu     sync.Mutex
	remote *model.RemoteError
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req.WithContext(t.ctx))
	if err != nil || resp.StatusCode < 300 {
		return resp, err
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	resp.Body.Close()
	if readErr != nil {
		raw = nil
	}

	t.mu.Lock()
	t.remote = decodeError(resp.StatusCode, raw)
	t.mu.Unlock()

	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp, nil
}

func (t *callTransport) remoteError() *model.RemoteError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote
}

// decodeError はエラーレスポンスを RemoteError に変換する。
// ボディがPostgRESTのエラー形式でない場合はボディ全体をメッセージとする。
func decodeError(status int, raw []byte) *model.RemoteError {
	remoteErr := &model.RemoteError{Status: status}

	if len(raw) == 0 {
		remoteErr.Message = http.StatusText(status)
		return remoteErr
	}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || (eb.Code == "" && eb.Message == "") {
		remoteErr.Message = strings.TrimSpace(string(raw))
		return remoteErr
	}

	remoteErr.Code = eb.Code
	remoteErr.Message = eb.Message
	remoteErr.Details = eb.Details
	remoteErr.Hint = eb.Hint
	return remoteErr
}

// compile-time interface check
var _ query.Executor = (*Client)(nil)
