package cmd

import (
	"fmt"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-web-bundle/internal/pipeline"
	"github.com/shouni/go-web-bundle/pkg/config"
	"github.com/shouni/go-web-bundle/pkg/httpclient"
	"github.com/shouni/go-web-bundle/pkg/logging"
	"github.com/shouni/go-web-bundle/pkg/naming"
	"github.com/shouni/go-web-bundle/pkg/report"
)

const (
	appName = "web-bundle"
)

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec  int    // --timeout タイムアウト
	MaxRetries  uint64 // --max-retries リトライ回数
	Concurrency int    // --concurrency 最大同時取得数
	NamePolicy  string // --name-policy ファイル名の導出方法
	UTF8        bool   // --utf8 ボディをUTF-8に変換して保存
	ConfigFile  string // --config-file 設定ファイル
	LogFile     string // --log-file ログファイル
}

var (
	Flags AppFlags

	appConfig     config.Config
	appLogger     = zap.NewNop()
	globalFetcher *httpclient.Client
)

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	defaults := config.Default()

	rootCmd.PersistentFlags().IntVar(&Flags.TimeoutSec, "timeout", defaults.TimeoutSec, "HTTPリクエストのタイムアウト時間（秒）")
	rootCmd.PersistentFlags().Uint64Var(&Flags.MaxRetries, "max-retries", defaults.MaxRetries, "HTTPリクエストのリトライ最大回数 (0 はリトライなし)")
	rootCmd.PersistentFlags().IntVar(&Flags.Concurrency, "concurrency", defaults.Concurrency, "最大同時取得数")
	rootCmd.PersistentFlags().StringVar(&Flags.NamePolicy, "name-policy", defaults.NamePolicy, "ファイル名の導出方法 (title|url)")
	rootCmd.PersistentFlags().BoolVar(&Flags.UTF8, "utf8", defaults.UTF8, "取得したページをUTF-8に変換して保存する")
	rootCmd.PersistentFlags().StringVar(&Flags.ConfigFile, "config-file", "", "YAML設定ファイルのパス")
	rootCmd.PersistentFlags().StringVar(&Flags.LogFile, "log-file", "", "JSONログの出力先ファイル (ローテーションあり)")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// 設定の優先順位は、既定値 < 設定ファイル < 環境変数 (.env を含む) < フラグ です。
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗しました: %w", err)
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	appConfig = cfg

	logger, err := logging.New(clibase.Flags.Verbose, cfg.LogFile)
	if err != nil {
		return err
	}
	appLogger = logger

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	appLogger.Debug("HTTPクライアントを設定しました",
		zap.Duration("timeout", timeout),
		zap.Uint64("max_retries", cfg.MaxRetries),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("utf8", cfg.UTF8),
	)

	// 共有フェッチャーの初期化
	globalFetcher = httpclient.New(
		timeout,
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithUTF8Decoding(cfg.UTF8),
	)
	return nil
}

// applyFlags は、明示的に指定されたフラグのみで設定を上書きします。
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.TimeoutSec = Flags.TimeoutSec
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = Flags.MaxRetries
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = Flags.Concurrency
	}
	if flags.Changed("name-policy") {
		cfg.NamePolicy = Flags.NamePolicy
	}
	if flags.Changed("utf8") {
		cfg.UTF8 = Flags.UTF8
	}
	if flags.Changed("log-file") {
		cfg.LogFile = Flags.LogFile
	}
}

// newPipeline は、現在の設定と通知先から Pipeline を生成します。
func newPipeline(notifier report.Notifier) *pipeline.Pipeline {
	// Validate 済みのためエラーにはならない
	policy, _ := naming.ParsePolicy(appConfig.NamePolicy)
	return pipeline.New(
		globalFetcher,
		pipeline.WithDeriver(naming.NewDeriver(policy)),
		pipeline.WithNotifier(notifier),
		pipeline.WithConcurrency(appConfig.Concurrency),
		pipeline.WithLogger(appLogger),
	)
}

// Execute は、clibaseのExecuteを使用してアプリケーションを実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		bundleCmd,
		serveCmd,
		feedCmd,
	)
}
