package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shouni/go-web-bundle/pkg/archive"
	"github.com/shouni/go-web-bundle/pkg/config"
)

// Sink は、生成されたアーカイブの保存先です。
type Sink interface {
	// Save は data を name として保存し、保存先を表す文字列を返します。
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// FileSink は、ローカルファイルシステムに保存します。
type FileSink struct {
	Path string // 保存先のファイルパス。空の場合は name を使用する
}

// Save は Sink インターフェースを実装します。
func (s FileSink) Save(_ context.Context, name string, data []byte) (string, error) {
	target := s.Path
	if target == "" {
		target = name
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("アーカイブの書き込みに失敗しました (%s): %w", target, err)
	}
	return target, nil
}

// ObjectClient は、MinIOSink が利用するオブジェクトストレージ操作です。*minio.Client が満たします。
type ObjectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOSink は、MinIO (S3互換) のバケットにアップロードします。
type MinIOSink struct {
	client ObjectClient
	bucket string
	prefix string
}

// NewMinIOClient は、設定から *minio.Client を生成します。
func NewMinIOClient(cfg config.MinIO) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIOクライアントの初期化に失敗しました (%s): %w", cfg.Endpoint, err)
	}
	return client, nil
}

// NewMinIOSink は MinIOSink を生成します。
func NewMinIOSink(client ObjectClient, bucket, prefix string) *MinIOSink {
	return &MinIOSink{client: client, bucket: bucket, prefix: prefix}
}

// Save は Sink インターフェースを実装します。バケットが存在しない場合は作成します。
func (s *MinIOSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "", fmt.Errorf("バケットの確認に失敗しました (%s): %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("バケットの作成に失敗しました (%s): %w", s.bucket, err)
		}
	}

	key := path.Join(s.prefix, name)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: archive.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("アーカイブのアップロードに失敗しました (%s/%s): %w", s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
