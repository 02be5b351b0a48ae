package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shouni/go-web-bundle/pkg/archive"
	"github.com/shouni/go-web-bundle/pkg/naming"
	"github.com/shouni/go-web-bundle/pkg/report"
	"github.com/shouni/go-web-bundle/pkg/scraper"
	"github.com/shouni/go-web-bundle/pkg/types"
	"github.com/shouni/go-web-bundle/pkg/urlnorm"
)

var (
	// ErrNoPagesRetrieved は、1件もページを取得できなかったことを表します。
	ErrNoPagesRetrieved = errors.New("ページを1件も取得できませんでした")
	// ErrNoURLProvided は、入力にURLが1つも含まれていなかったことを表します。
	// errors.Is(ErrNoURLProvided, ErrNoPagesRetrieved) が成り立ちます。
	ErrNoURLProvided = fmt.Errorf("URLが入力されていません: %w", ErrNoPagesRetrieved)
)

// Result は、1回の実行結果です。
type Result struct {
	RunID    string
	Archive  []byte
	Entries  []types.NamedContent // アーカイブ内と同じ順序 (入力順)
	Failures []types.Failure      // 入力順
}

// Pipeline は、URLの正規化・並列取得・ファイル名導出・アーカイブ化をまとめて実行します。
// 複数の Run を同時に実行できます。
type Pipeline struct {
	fetcher     scraper.Fetcher
	deriver     *naming.Deriver
	notifier    report.Notifier
	concurrency int
	logger      *zap.Logger
}

// Option は Pipeline の設定を変更する関数です。
type Option func(*Pipeline)

// WithDeriver は、ファイル名の導出方法を設定します。
func WithDeriver(d *naming.Deriver) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.deriver = d
		}
	}
}

// WithNotifier は、通知の送信先を設定します。
func WithNotifier(n report.Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithConcurrency は、最大同時取得数を設定します。
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// WithLogger は、デバッグログの出力先を設定します。
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New は、Pipeline を生成します。
func New(fetcher scraper.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		deriver:     naming.NewDeriver(naming.PolicyTitle),
		notifier:    report.Discard,
		concurrency: scraper.DefaultMaxConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// input は、空でない入力行1つ分の正規化結果です。
type input struct {
	raw  string
	err  error
	slot int // 取得結果のインデックス。無効なURLの場合は -1
}

// Run は、テキストの各行をURLとして処理し、取得できたページをZIPアーカイブにまとめます。
// 1つのURLの失敗は他のURLの処理を止めません。1件も取得できなかった場合のみエラーを返します。
// エラーの場合も、それまでの失敗を含む Result を返します。
func (p *Pipeline) Run(ctx context.Context, lines []string) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	notify := func(e types.Event) {
		e.RunID = res.RunID
		p.notifier.Notify(e)
	}

	// 1. 正規化 (空行は読み飛ばす)
	var (
		inputs  []input
		urls    []string
		targets []*url.URL
	)
	for _, raw := range lines {
		v, ok, err := urlnorm.Normalize(raw)
		if err == nil && !ok {
			continue
		}
		in := input{raw: strings.TrimSpace(raw), err: err, slot: -1}
		if err == nil {
			in.slot = len(urls)
			urls = append(urls, v.String())
			targets = append(targets, v.URL())
		}
		inputs = append(inputs, in)
	}

	if len(inputs) == 0 {
		notify(types.Event{Level: types.LevelError, Code: types.EventNoURL})
		return res, ErrNoURLProvided
	}

	p.logger.Debug("取得を開始します",
		zap.String("run_id", res.RunID),
		zap.Int("lines", len(inputs)),
		zap.Int("urls", len(urls)),
		zap.String("name_policy", string(p.deriver.Policy())),
	)

	// 2. 並列取得。ファイル名の導出は各ワーカー内で行う
	derive := func(r *types.FetchResult) {
		if !r.OK() {
			return
		}
		d := p.deriver.Derive(targets[r.Index], r.Page.Body, r.Page.DecodingContentType())
		r.BaseName = d.Name
		if d.Reason != nil {
			p.logger.Debug("タイトルからファイル名を導出できないためURLを使用します",
				zap.String("url", r.URL),
				zap.Error(d.Reason),
			)
		}
	}
	s := scraper.NewParallelScraper(p.fetcher, p.concurrency, scraper.WithHook(derive))
	fetched := s.ScrapeInParallel(ctx, urls)

	// 3. 入力順にマージ (名前の予約・エントリ構築・通知)
	registry := naming.NewRegistry()
	for _, in := range inputs {
		if in.slot < 0 {
			res.Failures = append(res.Failures, types.Failure{
				URL:     in.raw,
				Kind:    types.KindInvalidURL,
				Message: in.err.Error(),
				Cause:   in.err.Error(),
				Err:     in.err,
			})
			notify(types.Event{Level: types.LevelError, Code: types.EventInvalidURL, URL: in.raw})
			continue
		}

		r := fetched[in.slot]
		if !r.OK() {
			res.Failures = append(res.Failures, *r.Failure)
			notify(types.Event{Level: types.LevelError, Code: types.EventFetchFailed, URL: r.URL, Cause: r.Failure.Cause})
			continue
		}

		filename := registry.Reserve(r.BaseName)
		res.Entries = append(res.Entries, types.NamedContent{
			Filename: filename,
			Content:  r.Page.Body,
			URL:      r.URL,
		})
		notify(types.Event{Level: types.LevelInfo, Code: types.EventFetched, URL: r.URL, Filename: filename})
	}

	if len(res.Entries) == 0 {
		notify(types.Event{Level: types.LevelError, Code: types.EventNoPages})
		return res, ErrNoPagesRetrieved
	}

	// 4. アーカイブ化
	blob, err := archive.Build(res.Entries)
	if err != nil {
		return res, fmt.Errorf("アーカイブの作成に失敗しました: %w", err)
	}
	res.Archive = blob

	notify(types.Event{Level: types.LevelSuccess, Code: types.EventCompleted, Count: len(res.Entries)})
	return res, nil
}
