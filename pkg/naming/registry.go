package naming

import (
	"strconv"
	"strings"
)

// Registry は、1回の実行で使用済みのファイル名を記録し、重複を番号付きの接尾辞で解決します。
// ゴルーチンセーフではありません。入力順に1つのゴルーチンから呼び出すことで結果が決定的になります。
type Registry struct {
	used map[string]struct{}
}

// NewRegistry は、空の Registry を生成します。
func NewRegistry() *Registry {
	return &Registry{used: make(map[string]struct{})}
}

// Reserve は、name が未使用であればそのまま予約して返します。
// 使用済みの場合は base_2.html, base_3.html ... の順に未使用の名前を探して予約します。
// 接尾辞を付けてもベース部分は MaxBaseLength 文字以内に収まります。
func (r *Registry) Reserve(name string) string {
	if _, ok := r.used[name]; !ok {
		r.used[name] = struct{}{}
		return name
	}

	base := strings.TrimSuffix(name, Extension)
	for n := 2; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		b := base
		if len(b)+len(suffix) > MaxBaseLength {
			b = strings.TrimRight(b[:MaxBaseLength-len(suffix)], "_")
		}

		candidate := b + suffix + Extension
		if _, ok := r.used[candidate]; !ok {
			r.used[candidate] = struct{}{}
			return candidate
		}
	}
}

// Len は、予約済みの名前の数を返します。
func (r *Registry) Len() int {
	return len(r.used)
}
