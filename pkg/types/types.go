package types

import (
	"net/http"
)

// FailureKind は、URL単位の失敗の種類を表します。
type FailureKind string

const (
	KindInvalidURL   FailureKind = "invalid_url"
	KindFetchFailure FailureKind = "fetch_failure"
)

// Page は、1つのURLから取得に成功したレスポンスを保持します。
type Page struct {
	URL         string      // 取得対象のURL (正規化済み)
	StatusCode  int         // HTTPステータスコード
	Header      http.Header // レスポンスヘッダー
	Body        []byte      // レスポンスボディ (生バイト列)
	ContentType string      // Content-Type ヘッダーの値
	UTF8        bool        // Body がUTF-8に変換済みかどうか
}

// DecodingContentType は、Body の文字コード判定に使う Content-Type を返します。
func (p *Page) DecodingContentType() string {
	if p.UTF8 {
		return "text/html; charset=utf-8"
	}
	return p.ContentType
}

// Failure は、1つのURLの処理中に発生した失敗を保持します。
type Failure struct {
	URL     string
	Kind    FailureKind
	Message string // 人間が読めるメッセージ (URLと原因を含む)
	Cause   string // URLを含まない原因のみの説明
	Err     error
}

// FetchResult は、試行した各URLにつき1つだけ生成される結果です。
// Page と Failure のどちらか一方だけが設定されます。
type FetchResult struct {
	Index   int    // 入力内での位置
	URL     string // 処理対象のURL
	Page    *Page
	Failure *Failure
	// BaseName は、成功時にワーカー内で導出されたファイル名 (重複解決前) です。
	BaseName string
}

// OK は、結果が成功かどうかを返します。
func (r FetchResult) OK() bool {
	return r.Page != nil && r.Failure == nil
}

// NamedContent は、アーカイブに格納される1エントリです。
type NamedContent struct {
	Filename string
	Content  []byte
	URL      string
}
