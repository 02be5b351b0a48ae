package report

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shouni/go-web-bundle/pkg/types"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewLogNotifier(zap.New(core))

	n.Notify(types.Event{RunID: "run-1", Level: types.LevelInfo, Code: types.EventFetched, URL: "https://example.com/", Filename: "example_domain.html"})
	n.Notify(types.Event{RunID: "run-1", Level: types.LevelError, Code: types.EventFetchFailed, URL: "https://bad.invalid/", Cause: "no such host"})
	n.Notify(types.Event{RunID: "run-1", Level: types.LevelSuccess, Code: types.EventCompleted, Count: 1})

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "example_domain.html", entries[0].ContextMap()["filename"])
	assert.Equal(t, "run-1", entries[0].ContextMap()["run_id"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "no such host", entries[1].ContextMap()["error"])
	assert.Contains(t, entries[1].Message, "https://bad.invalid/")

	assert.Equal(t, int64(1), entries[2].ContextMap()["count"])
}

func TestNewLogNotifier_NilLogger(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NotPanics(t, func() {
		n.Notify(types.Event{Level: types.LevelInfo, Code: types.EventCompleted, Count: 2})
	})
}

func TestRecorder_Concurrent(t *testing.T) {
	r := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Notify(types.Event{Code: types.EventFetched, Count: i})
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Events(), 50)
}

func TestMulti(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	n := Multi(first, nil, second)

	n.Notify(types.Event{Code: types.EventNoURL})

	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
	assert.NotPanics(t, func() { Discard.Notify(types.Event{}) })
}
