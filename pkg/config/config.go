package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-web-bundle/pkg/archive"
	"github.com/shouni/go-web-bundle/pkg/naming"
	"github.com/shouni/go-web-bundle/pkg/scraper"
)

// EnvPrefix は、設定を上書きする環境変数の接頭辞です。
const EnvPrefix = "WEB_BUNDLE_"

// 既定値
const (
	DefaultTimeoutSec = 10
	DefaultServerAddr = ":8080"
)

// MinIO は、アーカイブのアップロード先の設定です。
type MinIO struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Enabled は、アップロード先が設定されているかどうかを返します。
func (m MinIO) Enabled() bool {
	return m.Endpoint != ""
}

// Config は、アプリケーション全体の設定です。
// 優先順位は、既定値 < 設定ファイル < 環境変数 < コマンドラインフラグ です。
type Config struct {
	TimeoutSec  int    `yaml:"timeout"`
	MaxRetries  uint64 `yaml:"max_retries"`
	Concurrency int    `yaml:"concurrency"`
	NamePolicy  string `yaml:"name_policy"`
	UTF8        bool   `yaml:"utf8"`
	UserAgent   string `yaml:"user_agent"`
	Output      string `yaml:"output"`
	LogFile     string `yaml:"log_file"`
	ServerAddr  string `yaml:"server_addr"`
	MinIO       MinIO  `yaml:"minio"`
}

// Default は、既定値で初期化された Config を返します。
func Default() Config {
	return Config{
		TimeoutSec:  DefaultTimeoutSec,
		Concurrency: scraper.DefaultMaxConcurrency,
		NamePolicy:  string(naming.PolicyTitle),
		Output:      archive.DefaultFilename,
		ServerAddr:  DefaultServerAddr,
	}
}

// Load は、既定値に YAML 設定ファイルの内容を重ねた Config を返します。path が空の場合は既定値のみです。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("設定ファイルのパースに失敗しました (%s): %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv は、.env ファイルを環境変数に読み込みます。ファイルが存在しない場合は何もしません。
// 既に設定されている環境変数は上書きしません。
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf(".envファイルの読み込みに失敗しました (%s): %w", name, err)
		}
	}
	return nil
}

// ApplyEnv は、WEB_BUNDLE_* 環境変数の値で設定を上書きします。
func (c *Config) ApplyEnv() error {
	var errs []error

	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: 整数ではありません: %q", EnvPrefix, key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: 真偽値ではありません: %q", EnvPrefix, key, v))
				return
			}
			*dst = b
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	setInt("TIMEOUT", &c.TimeoutSec)
	if v, ok := lookup("MAX_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_RETRIES: 0以上の整数ではありません: %q", EnvPrefix, v))
		} else {
			c.MaxRetries = n
		}
	}
	setInt("CONCURRENCY", &c.Concurrency)
	setString("NAME_POLICY", &c.NamePolicy)
	setBool("UTF8", &c.UTF8)
	setString("USER_AGENT", &c.UserAgent)
	setString("OUTPUT", &c.Output)
	setString("LOG_FILE", &c.LogFile)
	setString("SERVER_ADDR", &c.ServerAddr)
	setString("MINIO_ENDPOINT", &c.MinIO.Endpoint)
	setString("MINIO_BUCKET", &c.MinIO.Bucket)
	setString("MINIO_ACCESS_KEY", &c.MinIO.AccessKey)
	setString("MINIO_SECRET_KEY", &c.MinIO.SecretKey)
	setBool("MINIO_USE_SSL", &c.MinIO.UseSSL)
	setString("MINIO_PREFIX", &c.MinIO.Prefix)

	return errors.Join(errs...)
}

// Validate は、設定値の整合性を検証します。
func (c Config) Validate() error {
	var errs []error
	if c.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("timeout は1秒以上である必要があります: %d", c.TimeoutSec))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency は1以上である必要があります: %d", c.Concurrency))
	}
	if _, err := naming.ParsePolicy(c.NamePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.MinIO.Enabled() && c.MinIO.Bucket == "" {
		errs = append(errs, errors.New("minio.bucket が設定されていません"))
	}
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
