package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-web-bundle/pkg/feed"
	"github.com/shouni/go-web-bundle/pkg/urlnorm"
)

// フィードURLを保持するフラグ変数
var feedURL string

// クライアントタイムアウトに対するフィード取得全体のタイムアウトの倍率
const overallFeedTimeoutFactor = 2

// runFeedPipeline は、フィードの取得とパースを実行します。
func runFeedPipeline(ctx context.Context, url string, parser *feed.Parser, overallTimeout time.Duration) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	parsedFeed, err := parser.FetchAndParse(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得およびパースエラー (URL: %s): %w", url, err)
	}
	return parsedFeed, nil
}

// printFeed は、bundle --feed で入力となるリンクの一覧を表示します。
func printFeed(w io.Writer, parsedFeed *gofeed.Feed) {
	links := feed.GetAllLinks(feed.NewFeedAdapter(parsedFeed))

	fmt.Fprintf(w, "--- フィード解析結果 ---\n")
	fmt.Fprintf(w, "フィードタイトル: %s\n", parsedFeed.Title)
	if parsedFeed.Link != "" {
		fmt.Fprintf(w, "リンク: %s\n", parsedFeed.Link)
	}
	fmt.Fprintf(w, "合計記事数: %d (取得対象URL: %d)\n", len(parsedFeed.Items), len(links))
	fmt.Fprintln(w, "-----------------------")

	for i, link := range links {
		fmt.Fprintf(w, "[%d] %s\n", i+1, link)
	}
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "RSS/Atomフィードを解析し、bundle --feed の取得対象URLを一覧表示します",
	Long:  `指定されたURLからRSSまたはAtomフィードを取得し、アイテムのリンク (bundle --feed で取得されるURL) を表示します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFetcher == nil {
			return fmt.Errorf("HTTPクライアントの取得に失敗しました")
		}

		target, ok, err := urlnorm.Normalize(feedURL)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("フィードのURLが指定されていません")
		}

		overallTimeout := time.Duration(appConfig.TimeoutSec) * overallFeedTimeoutFactor * time.Second
		parsedFeed, err := runFeedPipeline(cmd.Context(), target.String(), feed.NewParser(globalFetcher), overallTimeout)
		if err != nil {
			return fmt.Errorf("フィード解析パイプラインの実行エラー: %w", err)
		}

		printFeed(cmd.OutOrStdout(), parsedFeed)
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	_ = feedCmd.MarkFlagRequired("url")
}
