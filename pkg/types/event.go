package types

import "fmt"

// EventLevel は、通知の重要度です。
type EventLevel string

const (
	LevelInfo    EventLevel = "info"
	LevelError   EventLevel = "error"
	LevelSuccess EventLevel = "success"
)

// EventCode は、通知の種類を識別します。
type EventCode string

const (
	EventFetched     EventCode = "fetched"
	EventInvalidURL  EventCode = "invalid_url"
	EventFetchFailed EventCode = "fetch_failed"
	EventCompleted   EventCode = "completed"
	EventNoPages     EventCode = "no_pages"
	EventNoURL       EventCode = "no_url"
)

// Event は、パイプラインから外部 (CLI/HTTP) へ送られる通知です。
type Event struct {
	RunID    string     `json:"run_id,omitempty"`
	Level    EventLevel `json:"level"`
	Code     EventCode  `json:"code"`
	URL      string     `json:"url,omitempty"`
	Filename string     `json:"filename,omitempty"`
	Cause    string     `json:"cause,omitempty"`
	Count    int        `json:"count,omitempty"`
}

// Message は、通知を人間が読める1行の文字列に整形します。
func (e Event) Message() string {
	switch e.Code {
	case EventFetched:
		return fmt.Sprintf("取得しました: %s → %s", e.URL, e.Filename)
	case EventInvalidURL:
		return fmt.Sprintf("無効なURLです: %s", e.URL)
	case EventFetchFailed:
		return fmt.Sprintf("取得に失敗しました %s: %s", e.URL, e.Cause)
	case EventCompleted:
		return fmt.Sprintf("%d 件のページを取得しました", e.Count)
	case EventNoPages:
		return "ページを1件も取得できませんでした"
	case EventNoURL:
		return "URLを1つ以上入力してください"
	default:
		return string(e.Code)
	}
}
