package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogEmitter 仅把事件写入日志，适合开发阶段使用。
type LogEmitter struct {
	logger *logrus.Logger
}

// NewLogEmitter 创建日志发射器，未提供 logger 时使用默认输出。
func NewLogEmitter(logger *logrus.Logger) *LogEmitter {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogEmitter{logger: logger}
}

// Emit 逐条打印事件。
func (e *LogEmitter) Emit(ctx context.Context, ev Event) error {
	e.logger.WithFields(logrus.Fields{
		"type":    ev.Type,
		"user":    ev.UserID,
		"job":     ev.JobID,
		"kind":    ev.Kind,
		"changes": ev.ChangesFound,
	}).Info(ev.Message)
	return nil
}
