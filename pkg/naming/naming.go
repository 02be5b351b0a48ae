package naming

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/shouni/go-web-bundle/pkg/extract"
)

const (
	// MaxBaseLength は、拡張子を除いたファイル名の最大長です。
	MaxBaseLength = 50
	// Extension は、すべての出力ファイルに付与される拡張子です。
	Extension = ".html"

	indexName    = "index"
	fallbackName = "page"
)

// Policy は、ファイル名の導出方法です。
type Policy string

const (
	// PolicyTitle は <title> からファイル名を導出し、使えない場合はURLから導出します。
	PolicyTitle Policy = "title"
	// PolicyURL は常にURL (ホスト + パス) からファイル名を導出します。
	PolicyURL Policy = "url"
)

// Source は、導出に実際に使われた入力を示します。
type Source string

const (
	SourceTitle Source = "title"
	SourceURL   Source = "url"
)

// ErrUnusableTitle は、タイトルは存在したがサニタイズ後に空になったことを表します。
var ErrUnusableTitle = errors.New("タイトルから有効なファイル名を生成できません")

var (
	// タイトル用: 単語文字・空白・ハイフン以外を除去
	unsafeTitleChars = regexp.MustCompile(`[^\w\s-]`)
	// 空白とハイフンの連続はアンダースコア1つにまとめる
	separatorRuns = regexp.MustCompile(`[-\s]+`)
	// URL用: ホスト名のドットは残し、それ以外の安全でない文字をアンダースコアに置換
	unsafeURLChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	asciiFolding = transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
)

// ParsePolicy は、文字列から Policy を解析します。
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyTitle, PolicyURL:
		return p, nil
	case "":
		return PolicyTitle, nil
	default:
		return "", fmt.Errorf("無効な命名ポリシーです。title または url を指定してください: %s", s)
	}
}

// Sanitize は、タイトル文字列を安全なファイル名のベース部分 (拡張子なし) に変換します。
// 結果は最大 MaxBaseLength 文字で、[a-z0-9_] のみを含み、先頭と末尾はアンダースコアになりません。
// 変換の結果が空になる場合は空文字列を返します。
func Sanitize(title string) string {
	// 1. 分音記号を分解して非ASCII文字を除去
	s := toASCII(title)
	// 2. 安全な文字以外を除去
	s = unsafeTitleChars.ReplaceAllString(s, "")
	// 3. 空白・ハイフンの連続をアンダースコアへ
	s = separatorRuns.ReplaceAllString(s, "_")
	// 4. 長さの制限 (ASCIIのみなのでバイト単位で安全に切り詰められる)
	if len(s) > MaxBaseLength {
		s = s[:MaxBaseLength]
	}
	return strings.Trim(strings.ToLower(s), "_")
}

// toASCII は、NFKD 正規化後に非ASCII文字を取り除きます。
func toASCII(s string) string {
	out, _, err := transform.String(asciiFolding, s)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, s)
	}
	return out
}

// URLBase は、URLのホストとパスからファイル名のベース部分 (拡張子なし) を生成します。
// パスが空の場合は "index" を使用します。例: https://example.com/ → example.com_index
func URLBase(u *url.URL) string {
	if u == nil {
		return fallbackName
	}

	path := strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", "_")
	if path == "" {
		path = indexName
	}

	base := unsafeURLChars.ReplaceAllString(u.Host+"_"+path, "_")
	if len(base) > MaxBaseLength {
		base = base[:MaxBaseLength]
	}
	base = strings.Trim(base, "_")
	if base == "" {
		return fallbackName
	}
	return base
}

// Derivation は、1ページ分のファイル名導出の結果です。
type Derivation struct {
	Name   string // 拡張子付きのファイル名 (重複解決前)
	Source Source
	// Reason は、タイトル方式でURLにフォールバックした理由です (extract.ErrNoTitle, *extract.ParseError, ErrUnusableTitle)。
	Reason error
}

// Deriver は、取得したページからファイル名を導出します。状態を持たず、並行に利用できます。
type Deriver struct {
	policy Policy
}

// NewDeriver は、指定したポリシーの Deriver を生成します。空のポリシーはタイトル方式になります。
func NewDeriver(policy Policy) *Deriver {
	if policy == "" {
		policy = PolicyTitle
	}
	return &Deriver{policy: policy}
}

// Policy は、この Deriver のポリシーを返します。
func (d *Deriver) Policy() Policy {
	return d.policy
}

// Derive は、ページのURLと本文からファイル名を導出します。
func (d *Deriver) Derive(u *url.URL, body []byte, contentType string) Derivation {
	if d.policy == PolicyURL {
		return Derivation{Name: URLBase(u) + Extension, Source: SourceURL}
	}

	title, err := extract.Title(body, contentType)
	if err == nil {
		if base := Sanitize(title); base != "" {
			return Derivation{Name: base + Extension, Source: SourceTitle}
		}
		err = ErrUnusableTitle
	}

	return Derivation{Name: URLBase(u) + Extension, Source: SourceURL, Reason: err}
}
