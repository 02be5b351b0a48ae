package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultScheme は、スキームが省略された入力に補完するスキームです。
const DefaultScheme = "https://"

// ErrInvalidURL は、構造的に有効なURLとして解釈できない入力を表します。
var ErrInvalidURL = errors.New("無効なURL")

// ValidatedURL は、スキームとホストの両方を持つことが確認済みのURLです。
// Normalize 以外から生成されることはありません。
type ValidatedURL struct {
	u *url.URL
}

// String は、正規化されたURL文字列を返します。
func (v ValidatedURL) String() string {
	if v.u == nil {
		return ""
	}
	return v.u.String()
}

// URL は、内部の *url.URL のコピーを返します。
func (v ValidatedURL) URL() *url.URL {
	if v.u == nil {
		return nil
	}
	c := *v.u
	return &c
}

// IsZero は、値が未設定かどうかを返します。
func (v ValidatedURL) IsZero() bool {
	return v.u == nil
}

// Normalize は、1行分の生の入力を検証・正規化します。
// 空行 (空白のみを含む) の場合は ok=false, err=nil を返し、呼び出し側はその行を黙って読み飛ばします。
func Normalize(raw string) (v ValidatedURL, ok bool, err error) {
	// 1. 前後の空白を除去し、空行は無視
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ValidatedURL{}, false, nil
	}

	// 2. スキームがない場合、HTTPSをデフォルトとして付与
	candidate := ensureScheme(trimmed)

	// 3. 構造的なパースとスキーム/ホストの検証
	parsed, err := url.Parse(candidate)
	if err != nil {
		return ValidatedURL{}, false, fmt.Errorf("%w: %s: %v", ErrInvalidURL, candidate, err)
	}
	if parsed.Scheme == "" || parsed.Hostname() == "" {
		return ValidatedURL{}, false, fmt.Errorf("%w: %s: スキームまたはホストがありません", ErrInvalidURL, candidate)
	}

	return ValidatedURL{u: parsed}, true, nil
}

// ensureScheme は、http:// または https:// で始まらない入力に https:// を補完します。
func ensureScheme(rawURL string) string {
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return rawURL
	}
	return DefaultScheme + rawURL
}

// SplitLines は、テキストブロックを1行1URL候補の配列に分割します。
// \r\n 改行も受け付けます。空行はそのまま残し、判定は Normalize に任せます。
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
