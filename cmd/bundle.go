package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-web-bundle/internal/pipeline"
	"github.com/shouni/go-web-bundle/pkg/archive"
	"github.com/shouni/go-web-bundle/pkg/feed"
	"github.com/shouni/go-web-bundle/pkg/report"
	"github.com/shouni/go-web-bundle/pkg/storage"
	"github.com/shouni/go-web-bundle/pkg/urlnorm"
)

// bundleOptions は bundle コマンドのフラグを保持します。
type bundleOptions struct {
	urls          string // --urls カンマ区切りのURLリスト
	file          string // --file 1行1URLのテキストファイル
	feedURL       string // --feed RSS/Atom フィードのURL
	output        string // --output 出力先ファイル
	minioEndpoint string // --minio-endpoint
	minioBucket   string // --minio-bucket
}

var bundleOpts bundleOptions

// lineSource は、入力行を供給する関数です。
type lineSource func(ctx context.Context) ([]string, error)

// collectLines は、指定された入力元 (--urls, --file, --feed) から入力行を集めます。
// いずれも指定されていない場合は標準入力から読み込みます。
func collectLines(ctx context.Context, opts bundleOptions, stdin io.Reader, links func(ctx context.Context, feedURL string) ([]string, error)) ([]string, error) {
	var sources []lineSource

	if opts.urls != "" {
		sources = append(sources, func(context.Context) ([]string, error) {
			return strings.Split(opts.urls, ","), nil
		})
	}
	if opts.file != "" {
		sources = append(sources, func(context.Context) ([]string, error) {
			data, err := os.ReadFile(opts.file)
			if err != nil {
				return nil, fmt.Errorf("入力ファイルの読み込みに失敗しました: %w", err)
			}
			return urlnorm.SplitLines(string(data)), nil
		})
	}
	if opts.feedURL != "" {
		sources = append(sources, func(ctx context.Context) ([]string, error) {
			return links(ctx, opts.feedURL)
		})
	}
	if len(sources) == 0 {
		sources = append(sources, func(context.Context) ([]string, error) {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
			}
			return urlnorm.SplitLines(string(data)), nil
		})
	}

	var lines []string
	for _, src := range sources {
		l, err := src(ctx)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l...)
	}
	return lines, nil
}

// newSink は、設定に応じてアーカイブの保存先を選択します。
func newSink(opts bundleOptions) (storage.Sink, error) {
	minioCfg := appConfig.MinIO
	if opts.minioEndpoint != "" {
		minioCfg.Endpoint = opts.minioEndpoint
	}
	if opts.minioBucket != "" {
		minioCfg.Bucket = opts.minioBucket
	}

	if !minioCfg.Enabled() {
		output := appConfig.Output
		if opts.output != "" {
			output = opts.output
		}
		return storage.FileSink{Path: output}, nil
	}

	if minioCfg.Bucket == "" {
		return nil, errors.New("MinIOのバケット名が指定されていません (--minio-bucket)")
	}
	client, err := storage.NewMinIOClient(minioCfg)
	if err != nil {
		return nil, err
	}
	return storage.NewMinIOSink(client, minioCfg.Bucket, minioCfg.Prefix), nil
}

// runBundlePipeline は、入力行からアーカイブを生成して保存するメインロジックです。
func runBundlePipeline(ctx context.Context, p *pipeline.Pipeline, lines []string, sink storage.Sink) (string, error) {
	res, err := p.Run(ctx, lines)
	if err != nil {
		return "", err
	}

	location, err := sink.Save(ctx, archive.DefaultFilename, res.Archive)
	if err != nil {
		return "", err
	}
	appLogger.Info("アーカイブを保存しました",
		zap.String("run_id", res.RunID),
		zap.String("location", location),
		zap.Int("pages", len(res.Entries)),
		zap.Int("failures", len(res.Failures)),
	)
	return location, nil
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "複数のURLを並列に取得し、ZIPアーカイブにまとめます",
	Long: `--urls (カンマ区切り)、--file (1行1URL)、--feed (RSS/Atom のアイテムリンク) からURLを受け取り、
いずれも指定されていない場合は標準入力から1行ずつ読み込みます。取得できたページは strony.zip にまとめられます。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer func() { _ = appLogger.Sync() }()

		if globalFetcher == nil {
			return fmt.Errorf("HTTPクライアントの取得に失敗しました")
		}

		sink, err := newSink(bundleOpts)
		if err != nil {
			return err
		}

		parser := feed.NewParser(globalFetcher)
		lines, err := collectLines(ctx, bundleOpts, cmd.InOrStdin(), parser.Links)
		if err != nil {
			return err
		}

		location, err := runBundlePipeline(ctx, newPipeline(report.NewLogNotifier(appLogger)), lines, sink)
		if err != nil {
			return fmt.Errorf("アーカイブの生成に失敗しました: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), location)
		return nil
	},
}

func init() {
	bundleCmd.Flags().StringVarP(&bundleOpts.urls, "urls", "u", "", "取得対象のカンマ区切りURLリスト (例: url1,url2,url3)")
	bundleCmd.Flags().StringVarP(&bundleOpts.file, "file", "f", "", "1行1URLのテキストファイル")
	bundleCmd.Flags().StringVar(&bundleOpts.feedURL, "feed", "", "アイテムのリンクを入力として使う RSS/Atom フィードのURL")
	bundleCmd.Flags().StringVarP(&bundleOpts.output, "output", "o", "", fmt.Sprintf("出力先のZIPファイル (デフォルト: %s)", archive.DefaultFilename))
	bundleCmd.Flags().StringVar(&bundleOpts.minioEndpoint, "minio-endpoint", "", "アップロード先の MinIO エンドポイント (認証情報は WEB_BUNDLE_MINIO_ACCESS_KEY / WEB_BUNDLE_MINIO_SECRET_KEY)")
	bundleCmd.Flags().StringVar(&bundleOpts.minioBucket, "minio-bucket", "", "アップロード先の MinIO バケット")
}
