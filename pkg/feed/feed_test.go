package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-bundle/pkg/types"
)

// MockFetcher は Parser が依存する Fetcher インターフェースのモックです。
type MockFetcher struct {
	FetchFunc func(ctx context.Context, url string) (*types.Page, error)
}

// Fetch は設定された関数を実行します。
func (m *MockFetcher) Fetch(ctx context.Context, url string) (*types.Page, error) {
	return m.FetchFunc(ctx, url)
}

const testURL = "http://example.com/feed"

// 最小限の有効なRSS XML
const validRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>http://example.com/</link>
    <item>
      <title>Test Item</title>
      <link>http://example.com/item1</link>
    </item>
    <item>
      <title>No Link</title>
    </item>
    <item>
      <title>Second Item</title>
      <link> http://example.com/item2 </link>
    </item>
    <item>
      <title>Duplicate</title>
      <link>http://example.com/item1</link>
    </item>
  </channel>
</rss>`

func page(body string) *types.Page {
	return &types.Page{URL: testURL, StatusCode: 200, Body: []byte(body)}
}

func TestFetchAndParse(t *testing.T) {
	tests := []struct {
		name          string
		fetch         func(ctx context.Context, url string) (*types.Page, error)
		expectedTitle string
		errorContains string
	}{
		{
			name: "成功ケース_有効なRSS",
			fetch: func(ctx context.Context, url string) (*types.Page, error) {
				return page(validRSS), nil
			},
			expectedTitle: "Test Feed",
		},
		{
			name: "エラーケース_フィード取得失敗",
			fetch: func(ctx context.Context, url string) (*types.Page, error) {
				return nil, errors.New("HTTPエラー: 500 Internal Server Error")
			},
			errorContains: "フィードの取得失敗",
		},
		{
			name: "エラーケース_パース失敗",
			fetch: func(ctx context.Context, url string) (*types.Page, error) {
				return page(`<invalid><tag>`), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
		{
			name: "エッジケース_空ボディ",
			fetch: func(ctx context.Context, url string) (*types.Page, error) {
				return page(""), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called string
			p := NewParser(&MockFetcher{FetchFunc: func(ctx context.Context, url string) (*types.Page, error) {
				called = url
				return tt.fetch(ctx, url)
			}})

			feed, err := p.FetchAndParse(context.Background(), testURL)
			assert.Equal(t, testURL, called)

			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Contains(t, err.Error(), testURL)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, feed)
			assert.Equal(t, tt.expectedTitle, feed.Title)
		})
	}
}

func TestParser_Links(t *testing.T) {
	p := NewParser(&MockFetcher{FetchFunc: func(ctx context.Context, url string) (*types.Page, error) {
		return page(validRSS), nil
	}})

	links, err := p.Links(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/item1", "http://example.com/item2"}, links)
}

func TestGetAllLinks(t *testing.T) {
	assert.Equal(t, []string{}, GetAllLinks(nil))
	assert.Equal(t, []string{}, GetAllLinks(NewFeedAdapter(nil)))
	assert.Equal(t, []string{}, GetAllLinks(NewFeedAdapter(&gofeed.Feed{})))

	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Link: "https://a.example/"},
		nil,
		{Link: ""},
		{Link: "https://b.example/"},
	}}
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, GetAllLinks(NewFeedAdapter(feed)))
}
