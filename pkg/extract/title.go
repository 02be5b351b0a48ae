package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html/charset"
)

// ErrNoTitle は、ドキュメントに <title> 要素が存在しない、または空であることを表します。
var ErrNoTitle = errors.New("titleタグが見つかりません")

// ParseError は、HTMLドキュメントの文字コード判定または解析に失敗したことを表します。
type ParseError struct {
	Err error
}

// Error は error インターフェースを実装します。
func (e *ParseError) Error() string {
	return fmt.Sprintf("HTML解析に失敗しました: %v", e.Err)
}

// Unwrap は元のエラーを返します。
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Title は、HTMLの生バイト列からページタイトルを抽出します。
// contentType (Content-Type ヘッダーの値) と <meta charset> から文字コードを判定し、UTF-8 として解析します。
// 失敗は ErrNoTitle と *ParseError の2種類で明示的に区別されます。
func Title(body []byte, contentType string) (string, error) {
	// 1. 文字コードを判定してUTF-8に変換するリーダーを作成
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", &ParseError{Err: err}
	}

	// 2. goquery.Documentに変換 (解析の責務)
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", &ParseError{Err: err}
	}

	return titleFromDocument(doc)
}

// titleFromDocument は、最初の <title> 要素のテキストを正規化して返します。
func titleFromDocument(doc *goquery.Document) (string, error) {
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return "", ErrNoTitle
	}

	title := textUtils.NormalizeText(sel.Text())
	if title == "" {
		return "", ErrNoTitle
	}
	return title, nil
}
