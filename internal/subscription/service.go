package subscription

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"skillradar/internal/model"
	"skillradar/internal/notifier"

	"gorm.io/datatypes"
)

// Store 定义持久化接口。
type Store interface {
	UpsertNotificationSubscription(ctx context.Context, sub *model.NotificationSubscription) error
	ListNotificationSubscriptions(ctx context.Context, userID string) ([]model.NotificationSubscription, error)
}

// Config 控制可用渠道。
type Config struct {
	AllowedChannels []string `yaml:"allowed_channels" json:"allowed_channels"`
}

// Request 表示订阅请求。Events 为空表示订阅全部事件。
type Request struct {
	UserID  string   `json:"user_id"`
	Email   string   `json:"email"`
	Channel string   `json:"channel"`
	Events  []string `json:"events"`
}

// Service 负责验证与写入通知订阅。
type Service struct {
	store    Store
	channels map[string]struct{}
}

// NewService 创建订阅服务。
func NewService(store Store, cfg Config) *Service {
	channelMap := make(map[string]struct{})
	for _, ch := range cfg.AllowedChannels {
		if trimmed := strings.ToLower(strings.TrimSpace(ch)); trimmed != "" {
			channelMap[trimmed] = struct{}{}
		}
	}
	if len(channelMap) == 0 {
		channelMap["email"] = struct{}{}
	}
	return &Service{store: store, channels: channelMap}
}

var knownEvents = map[string]struct{}{
	string(notifier.EventProfileRefreshed): {},
	string(notifier.EventScrapeFailed):     {},
}

// Create 校验请求并写入数据库。
func (s *Service) Create(ctx context.Context, req Request) (model.NotificationSubscription, error) {
	if req.UserID == "" {
		return model.NotificationSubscription{}, fmt.Errorf("user_id required")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return model.NotificationSubscription{}, fmt.Errorf("email required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NotificationSubscription{}, fmt.Errorf("invalid email: %w", err)
	}

	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		channel = "email"
	}
	if _, ok := s.channels[channel]; !ok {
		return model.NotificationSubscription{}, fmt.Errorf("unsupported channel %s", channel)
	}

	events := datatypes.JSONMap{}
	for _, ev := range req.Events {
		key := strings.ToLower(strings.TrimSpace(ev))
		if key == "" {
			continue
		}
		if _, ok := knownEvents[key]; !ok {
			return model.NotificationSubscription{}, fmt.Errorf("unknown event %s", ev)
		}
		events[key] = true
	}

	sub := model.NotificationSubscription{
		UserID:  req.UserID,
		Email:   email,
		Channel: channel,
		Events:  events,
		Active:  true,
	}
	if err := s.store.UpsertNotificationSubscription(ctx, &sub); err != nil {
		return model.NotificationSubscription{}, err
	}
	return sub, nil
}
