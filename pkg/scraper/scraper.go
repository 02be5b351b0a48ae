package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/shouni/go-web-bundle/pkg/httpclient"
	"github.com/shouni/go-web-bundle/pkg/types"
)

const (
	// DefaultMaxConcurrency は、並列取得のデフォルトの最大同時実行数を定義します。
	DefaultMaxConcurrency = 6
)

// Fetcher は、1つのURLを取得する機能のインターフェースです。*httpclient.Client が満たします。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*types.Page, error)
}

// Scraper は複数URLの並列取得機能を提供するインターフェースです。
type Scraper interface {
	ScrapeInParallel(ctx context.Context, urls []string) []types.FetchResult
}

// Hook は、各ワーカー内で結果が確定した直後に呼び出されます。
// 自分の結果スロットのみを変更できます。
type Hook func(result *types.FetchResult)

// ParallelScraper は Scraper インターフェースを実装する並列処理構造体です。
type ParallelScraper struct {
	fetcher        Fetcher
	maxConcurrency int
	hook           Hook
}

// Option は ParallelScraper の設定を変更する関数です。
type Option func(*ParallelScraper)

// WithHook は、ワーカー内で実行する後処理を設定します。
func WithHook(hook Hook) Option {
	return func(s *ParallelScraper) {
		s.hook = hook
	}
}

// NewParallelScraper は ParallelScraper を初期化します。
// 依存性として Fetcher と、最大同時実行数を受け取ります。
func NewParallelScraper(fetcher Fetcher, maxConcurrency int, opts ...Option) *ParallelScraper {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	s := &ParallelScraper{
		fetcher:        fetcher,
		maxConcurrency: maxConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxConcurrency は、最大同時実行数を返します。
func (s *ParallelScraper) MaxConcurrency() int {
	return s.maxConcurrency
}

// ScrapeInParallel は、すべてのURLを並列に取得し、入力と同じ順序で結果を返します。
// 1つのURLの失敗は他のURLに影響しません。結果の長さは常に len(urls) と等しくなります。
func (s *ParallelScraper) ScrapeInParallel(ctx context.Context, urls []string) []types.FetchResult {
	results := make([]types.FetchResult, len(urls))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency))

	var wg sync.WaitGroup
	for i, u := range urls {
		results[i] = types.FetchResult{Index: i, URL: u}

		// スロットの確保。maxConcurrency件実行中の場合はここで待機する
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Failure = fetchFailure(u, &httpclient.FetchError{URL: u, Err: err})
			s.runHook(&results[i])
			continue
		}

		wg.Add(1)
		go func(slot *types.FetchResult) {
			defer wg.Done()
			defer sem.Release(1)
			s.scrape(ctx, slot)
		}(&results[i])
	}

	wg.Wait()
	return results
}

// scrape は1件の取得を行い、結果を slot に書き込みます。
func (s *ParallelScraper) scrape(ctx context.Context, slot *types.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			slot.Page = nil
			slot.Failure = fetchFailure(slot.URL, &httpclient.FetchError{
				URL: slot.URL,
				Err: fmt.Errorf("取得処理中にパニックが発生しました: %v", r),
			})
		}
	}()

	page, err := s.fetcher.Fetch(ctx, slot.URL)
	switch {
	case err != nil:
		slot.Failure = fetchFailure(slot.URL, err)
	case page == nil:
		slot.Failure = fetchFailure(slot.URL, &httpclient.FetchError{URL: slot.URL, Err: errors.New("空のレスポンス")})
	default:
		slot.Page = page
	}

	s.runHook(slot)
}

func (s *ParallelScraper) runHook(slot *types.FetchResult) {
	if s.hook != nil {
		s.hook(slot)
	}
}

// fetchFailure は、取得エラーを Failure に変換します。
func fetchFailure(url string, err error) *types.Failure {
	cause := err.Error()
	var fetchErr *httpclient.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Err != nil {
		cause = fetchErr.Err.Error()
	}
	return &types.Failure{
		URL:     url,
		Kind:    types.KindFetchFailure,
		Message: err.Error(),
		Cause:   cause,
		Err:     err,
	}
}
