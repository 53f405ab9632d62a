package model

import "time"

// WebhookRegistration 表示一条仓库 webhook 绑定，按 (owner, repo) 唯一。
// Secret 只在创建时返回一次，常规读取不序列化。
type WebhookRegistration struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          string     `gorm:"index" json:"user_id"`
	Owner           string     `gorm:"uniqueIndex:uniq_owner_repo,priority:1" json:"owner"`
	Repo            string     `gorm:"uniqueIndex:uniq_owner_repo,priority:2" json:"repo"`
	Secret          string     `json:"-"`
	Active          bool       `json:"active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FullName 返回 owner/repo 形式的仓库全名。
func (w WebhookRegistration) FullName() string {
	return w.Owner + "/" + w.Repo
}
