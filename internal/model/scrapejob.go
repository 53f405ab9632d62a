package model

import "time"

// JobKind 表示抓取任务类型。
type JobKind string

const (
	JobKindGitHub   JobKind = "github"
	JobKindLinkedIn JobKind = "linkedin"
	JobKindFull     JobKind = "full"
)

// JobStatus 表示抓取任务状态，pending→running→{completed|failed}，终态不可再变。
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// TriggerSource 表示任务触发来源。
type TriggerSource string

const (
	TriggerWebhook  TriggerSource = "webhook"
	TriggerSchedule TriggerSource = "schedule"
	TriggerUser     TriggerSource = "user"
	TriggerAdmin    TriggerSource = "admin"
)

// ScrapeJob 是一次异步证据刷新任务的状态机记录。
type ScrapeJob struct {
	ID           string        `gorm:"primaryKey" json:"id"`
	UserID       string        `gorm:"index:idx_job_user" json:"user_id"`
	Kind         JobKind       `gorm:"index:idx_job_user" json:"kind"`
	Status       JobStatus     `gorm:"index" json:"status"`
	Trigger      TriggerSource `json:"trigger"`
	ScheduledAt  time.Time     `gorm:"index" json:"scheduled_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ChangesFound bool          `json:"changes_found"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Terminal 返回任务是否已进入终态。
func (j ScrapeJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
