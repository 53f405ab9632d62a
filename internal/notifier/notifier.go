package notifier

import (
	"context"
	"time"

	"skillradar/internal/model"
)

// EventType 表示通知事件类型。
type EventType string

const (
	// EventProfileRefreshed 表示一次刷新完成且发现了变化。
	EventProfileRefreshed EventType = "profile_refreshed"
	// EventScrapeFailed 表示后台任务失败，原调用方已收到乐观响应，
	// 失败只能通过通知与任务历史发现。
	EventScrapeFailed EventType = "scrape_failed"
)

// Event 是一条通知事件。
type Event struct {
	Type         EventType
	UserID       string
	JobID        string
	Kind         model.JobKind
	Message      string
	ChangesFound bool
	At           time.Time
}

// Emitter 是通知的统一出口，副作用终点，不承载业务逻辑。
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}
