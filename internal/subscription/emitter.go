package subscription

import (
	"context"
	"fmt"

	"skillradar/internal/model"
	"skillradar/internal/notifier"

	"github.com/sirupsen/logrus"
)

// Emitter 按用户订阅路由事件：有邮件订阅的发邮件，否则退回兜底 Emitter。
type Emitter struct {
	store    Store
	sender   notifier.EmailSender
	from     string
	subject  string
	fallback notifier.Emitter
	logger   *logrus.Logger
}

// NewEmitter 创建订阅路由 Emitter。sender 为 nil 时只走兜底。
func NewEmitter(store Store, sender notifier.EmailSender, from, subject string, fallback notifier.Emitter, logger *logrus.Logger) *Emitter {
	if subject == "" {
		subject = "Skill profile update"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Emitter{store: store, sender: sender, from: from, subject: subject, fallback: fallback, logger: logger}
}

// Emit 实现 notifier.Emitter。
func (e *Emitter) Emit(ctx context.Context, ev notifier.Event) error {
	delivered := 0
	if e.sender != nil {
		subs, err := e.store.ListNotificationSubscriptions(ctx, ev.UserID)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		for _, sub := range subs {
			if sub.Channel != "email" || !wantsEvent(sub, ev.Type) {
				continue
			}
			msg := notifier.EmailMessage{
				From:    e.from,
				To:      []string{sub.Email},
				Subject: e.subject,
				Body:    notifier.EventBody(ev),
			}
			if err := e.sender.Send(ctx, msg); err != nil {
				e.logger.WithError(err).WithField("email", sub.Email).Warn("send subscription email")
				continue
			}
			delivered++
		}
	}

	if delivered == 0 && e.fallback != nil {
		return e.fallback.Emit(ctx, ev)
	}
	return nil
}

// wantsEvent 判断订阅是否覆盖该事件，空集合表示全部。
func wantsEvent(sub model.NotificationSubscription, t notifier.EventType) bool {
	if len(sub.Events) == 0 {
		return true
	}
	_, ok := sub.Events[string(t)]
	return ok
}
