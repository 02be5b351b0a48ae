package report

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shouni/go-web-bundle/pkg/types"
)

// Notifier は、パイプラインからの通知を受け取る機能のインターフェースです。
// UIやログへの出力はこのインターフェースの実装として注入します。
type Notifier interface {
	Notify(event types.Event)
}

// NotifierFunc は、関数を Notifier として扱うためのアダプターです。
type NotifierFunc func(event types.Event)

// Notify は Notifier インターフェースを実装します。
func (f NotifierFunc) Notify(event types.Event) {
	f(event)
}

// Discard は、すべての通知を破棄する Notifier です。
var Discard Notifier = NotifierFunc(func(types.Event) {})

// LogNotifier は、通知を zap の構造化ログとして出力します。
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier は、LogNotifier を生成します。logger が nil の場合は何も出力しません。
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify は Notifier インターフェースを実装します。
func (n *LogNotifier) Notify(event types.Event) {
	fields := []zap.Field{
		zap.String("code", string(event.Code)),
	}
	if event.RunID != "" {
		fields = append(fields, zap.String("run_id", event.RunID))
	}
	if event.URL != "" {
		fields = append(fields, zap.String("url", event.URL))
	}
	if event.Filename != "" {
		fields = append(fields, zap.String("filename", event.Filename))
	}
	if event.Cause != "" {
		fields = append(fields, zap.String("error", event.Cause))
	}
	if event.Code == types.EventCompleted {
		fields = append(fields, zap.Int("count", event.Count))
	}

	switch event.Level {
	case types.LevelError:
		n.logger.Error(event.Message(), fields...)
	default:
		n.logger.Info(event.Message(), fields...)
	}
}

// Recorder は、受け取った通知を順番に記録します。複数のゴルーチンから安全に利用できます。
type Recorder struct {
	mu     sync.Mutex
	events []types.Event
}

// Notify は Notifier インターフェースを実装します。
func (r *Recorder) Notify(event types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events は、記録された通知のコピーを返します。
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Multi は、複数の Notifier に同じ通知を順に配送します。nil は無視されます。
func Multi(notifiers ...Notifier) Notifier {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return NotifierFunc(func(event types.Event) {
		for _, n := range active {
			n.Notify(event)
		}
	})
}
