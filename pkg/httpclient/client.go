package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/shouni/go-web-bundle/pkg/retry"
	"github.com/shouni/go-web-bundle/pkg/types"
)

const (
	// DefaultHTTPTimeout は、1リクエストあたりの固定タイムアウトです。
	DefaultHTTPTimeout = 10 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// maxErrorBodyLen は、エラーメッセージに含めるボディの最大長です。
	maxErrorBodyLen = 1024

	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
)

// ErrFetch は、ページ取得の失敗 (ネットワークエラー、タイムアウト、エラーステータス) を表します。
var ErrFetch = errors.New("ページの取得に失敗しました")

// FetchError は、1つのURLの取得失敗を表します。errors.Is(err, ErrFetch) が成り立ちます。
type FetchError struct {
	URL string
	Err error
}

// Error は error インターフェースを実装します。
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s (URL: %s): %v", ErrFetch.Error(), e.URL, e.Err)
}

// Unwrap は ErrFetch と元の原因の両方を返します。
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// Doer は、HTTPリクエストを実行する機能のインターフェースです。*http.Client が満たします。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError は、エラーを示すHTTPステータスコード (4xx/5xx) を表します。
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error は error インターフェースを実装します。
func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d %s, ボディなし", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen] + "..."
	}
	return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d %s, ボディ: %s", e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Client は、1つのURLを取得するHTTPクライアントです。
// 複数のゴルーチンから同時に利用できます。
type Client struct {
	httpClient  Doer
	retryConfig retry.Config
	maxBodySize int64
	userAgent   string
	decodeUTF8  bool
}

// Option は Client の設定を変更する関数です。
type Option func(*Client)

// WithHTTPClient は、利用する Doer を差し替えます (主にテスト用)。
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithMaxRetries は、リトライ回数を設定します。0 の場合はリトライしません。
func WithMaxRetries(max uint64) Option {
	return func(c *Client) {
		c.retryConfig.MaxRetries = max
	}
}

// WithMaxBodySize は、読み込むボディの最大サイズを設定します。
func WithMaxBodySize(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodySize = limit
		}
	}
}

// WithUserAgent は、User-Agent ヘッダーを設定します。
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithUTF8Decoding は、取得したボディを Content-Type / <meta> から判定した文字コードで
// UTF-8 に変換して保持するかどうかを設定します。
func WithUTF8Decoding(enabled bool) Option {
	return func(c *Client) {
		c.decodeUTF8 = enabled
	}
}

// New は、新しい Client を生成します。timeout が 0 以下の場合は DefaultHTTPTimeout を使用します。
func New(timeout time.Duration, options ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.DefaultConfig(),
		maxBodySize: MaxBodySize,
		userAgent:   UserAgent,
	}

	for _, opt := range options {
		opt(c)
	}
	return c
}

// Fetch は、指定されたURLに対してGETリクエストを1回実行し、取得結果を返します。
// 返されるエラーは常に *FetchError で、URLと原因を含みます。
func (c *Client) Fetch(ctx context.Context, url string) (*types.Page, error) {
	var page *types.Page

	op := func() error {
		var fetchErr error
		page, fetchErr = c.doFetch(ctx, url)
		return fetchErr
	}

	var err error
	if c.retryConfig.MaxRetries == 0 {
		err = op()
	} else {
		err = retry.Do(ctx, c.retryConfig, fmt.Sprintf("URL(%s)のフェッチ", url), op, isRetryableError)
	}

	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return page, nil
}

// doFetch は実際の一度のHTTP GETリクエストを実行します。
func (c *Client) doFetch(ctx context.Context, url string) (*types.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen+1))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: errBody}
	}

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	decoded := false
	if c.decodeUTF8 {
		body, decoded = toUTF8(body, contentType)
	}

	return &types.Page{
		URL:         url,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		Body:        body,
		ContentType: contentType,
		UTF8:        decoded,
	}, nil
}

// readBody は、maxBodySize を上限としてボディを読み込みます。上限を超えた場合はエラーです。
func (c *Client) readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", c.maxBodySize)
	}
	return body, nil
}

// toUTF8 は、判定された文字コードからUTF-8へ変換します。変換できない場合は元のバイト列と false を返します。
func toUTF8(body []byte, contentType string) ([]byte, bool) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body, false
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body, false
	}
	return decoded, true
}

// IsStatusError は、与えられたエラーがHTTPステータスエラーであるかを判断します。
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// isRetryableError はエラーがリトライ対象かどうかを判定します。
// retry.ShouldRetryFunc 型のシグネチャを満たします。
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 1. 呼び出し元のContextが終了している場合はリトライしない
	if errors.Is(err, context.Canceled) {
		return false
	}

	// 2. 4xx はリトライしない、5xx はリトライ対象
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}

	// 3. ネットワークエラー・タイムアウトはリトライ対象
	return true
}
