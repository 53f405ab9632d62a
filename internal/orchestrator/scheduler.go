package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ticker 抽象定时器，便于测试驱动。
type ticker interface {
	C() <-chan time.Time
	Stop()
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }

// Start 启动调度循环：到期的计划任务被提升派发，
// 保留窗口外的终态任务被清理。循环直到上下文取消。
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.store == nil || o.collector == nil || o.engine == nil {
		return fmt.Errorf("orchestrator missing dependencies")
	}

	g, ctx := errgroup.WithContext(ctx)

	tick := o.newTicker(o.poll)
	ch := tick.C()

	g.Go(func() error {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				if _, err := o.pollOnce(ctx); err != nil {
					o.logger.WithError(err).Warn("scheduler poll failed")
				}
			drain:
				for {
					select {
					case <-ch:
						continue
					default:
						break drain
					}
				}
			}
		}
	})

	return g.Wait()
}

// pollOnce 提升到期任务并清理过期历史，返回派发数量。
func (o *Orchestrator) pollOnce(ctx context.Context) (int, error) {
	if o.polling.Swap(true) {
		return 0, nil
	}
	defer o.polling.Store(false)

	now := o.now()
	due, err := o.store.DueScheduledJobs(ctx, now, 50)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}
	for i := range due {
		job := due[i]
		o.dispatch(&job)
	}

	if _, err := o.store.CleanupScrapeJobs(ctx, now.Add(-o.retention)); err != nil {
		return len(due), fmt.Errorf("cleanup jobs: %w", err)
	}

	return len(due), nil
}
