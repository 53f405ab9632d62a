package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationSubscription 记录某用户希望接收哪些事件通知。
// Events 为事件名集合，空表示订阅全部事件。
type NotificationSubscription struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"uniqueIndex:uniq_user_email,priority:1" json:"user_id"`
	Email     string            `gorm:"uniqueIndex:uniq_user_email,priority:2" json:"email"`
	Channel   string            `json:"channel"`
	Events    datatypes.JSONMap `json:"events"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
