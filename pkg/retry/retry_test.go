package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, uint64(DefaultMaxRetries), cfg.MaxRetries, "MaxRetries should match DefaultMaxRetries constant.")
	require.Equal(t, InitialBackoffInterval, cfg.InitialInterval, "InitialInterval should match constant.")
	require.Equal(t, MaxBackoffInterval, cfg.MaxInterval, "MaxInterval should match constant.")
}

func TestNewBackOffPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}

	bo := newBackOffPolicy(ctx, cfg)
	require.NotNil(t, bo)
}

func TestDo(t *testing.T) {
	// テスト用の高速な設定
	testCfg := Config{MaxRetries: 3, InitialInterval: 1 * time.Millisecond, MaxInterval: 10 * time.Millisecond}
	opName := "test_operation"

	maxRetriesErrText := fmt.Sprintf("%sに失敗しました: 最大リトライ回数 (%d回) に到達。最終エラー: retryable error", opName, testCfg.MaxRetries)

	tests := []struct {
		name          string
		ctx           context.Context
		cfg           Config
		operation     func(calls *int) Operation
		shouldRetry   ShouldRetryFunc
		expectedError string
		containsError bool
		expectedCalls int
	}{
		{
			name:          "successful operation",
			ctx:           context.Background(),
			cfg:           testCfg,
			operation:     func(calls *int) Operation { return func() error { *calls++; return nil } },
			shouldRetry:   func(err error) bool { return false },
			expectedCalls: 1,
		},
		{
			name: "retryable error and success within max retries",
			ctx:  context.Background(),
			cfg:  testCfg,
			operation: func(calls *int) Operation {
				return func() error {
					*calls++
					if *calls < 3 {
						return errors.New("retryable error")
					}
					return nil
				}
			},
			shouldRetry:   func(err error) bool { return err.Error() == "retryable error" },
			expectedCalls: 3,
		},
		{
			name: "permanent error is returned as is",
			ctx:  context.Background(),
			cfg:  testCfg,
			operation: func(calls *int) Operation {
				return func() error { *calls++; return errors.New("permanent error") }
			},
			shouldRetry:   func(err error) bool { return false },
			expectedError: "permanent error",
			expectedCalls: 1,
		},
		{
			name: "context canceled",
			ctx:  func() context.Context { ctx, cancel := context.WithCancel(context.Background()); cancel(); return ctx }(),
			cfg:  testCfg,
			operation: func(calls *int) Operation {
				return func() error { *calls++; return errors.New("some error") }
			},
			shouldRetry:   func(err error) bool { return true },
			expectedError: "test_operationに失敗しました: コンテキストタイムアウト/キャンセル: context canceled",
			containsError: true,
			expectedCalls: 1,
		},
		{
			name: "max retries exceeded",
			ctx:  context.Background(),
			cfg:  testCfg,
			operation: func(calls *int) Operation {
				return func() error { *calls++; return errors.New("retryable error") }
			},
			shouldRetry:   func(err error) bool { return true },
			expectedError: maxRetriesErrText,
			expectedCalls: 4, // 初回 + リトライ3回
		},
		{
			name: "zero retries runs once",
			ctx:  context.Background(),
			cfg:  Config{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
			operation: func(calls *int) Operation {
				return func() error { *calls++; return errors.New("retryable error") }
			},
			shouldRetry:   func(err error) bool { return true },
			expectedError: fmt.Sprintf("%sに失敗しました: 最大リトライ回数 (0回) に到達。最終エラー: retryable error", opName),
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(tt.ctx, tt.cfg, opName, tt.operation(&calls), tt.shouldRetry)

			require.Equal(t, tt.expectedCalls, calls)
			if tt.expectedError == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			if tt.containsError {
				require.Contains(t, err.Error(), tt.expectedError)
			} else {
				require.Equal(t, tt.expectedError, err.Error())
			}
		})
	}
}
