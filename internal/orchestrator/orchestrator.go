package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"skillradar/internal/model"
	"skillradar/internal/notifier"
	"skillradar/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Store 抽象任务与技能记录的持久化接口，便于测试替换。
type Store interface {
	CreateScrapeJob(ctx context.Context, job *model.ScrapeJob) error
	StartScrapeJob(ctx context.Context, id string, at time.Time) (bool, error)
	FinishScrapeJob(ctx context.Context, id string, at time.Time, errMessage string, changes bool) error
	FindActiveScrapeJob(ctx context.Context, userID string, kind model.JobKind, now time.Time) (*model.ScrapeJob, error)
	LastUserScrapeJob(ctx context.Context, userID string, kind model.JobKind) (*model.ScrapeJob, error)
	DueScheduledJobs(ctx context.Context, now time.Time, limit int) ([]model.ScrapeJob, error)
	CleanupScrapeJobs(ctx context.Context, before time.Time) (int64, error)
	UpsertSkillEvidence(ctx context.Context, skills []model.SkillEvidence) error
}

// Collector 抽象证据抓取，返回是否发现了变化。
type Collector interface {
	CollectGitHub(ctx context.Context, userID string) (bool, error)
	CollectLinkedIn(ctx context.Context, userID string) (bool, error)
}

// SkillEngine 抽象置信度重算。
type SkillEngine interface {
	Recompute(ctx context.Context, userID string) ([]model.SkillEvidence, error)
}

// Emitter 抽象通知出口。
type Emitter interface {
	Emit(ctx context.Context, ev notifier.Event) error
}

// RateLimitError 表示用户触发落在限流窗口内。
type RateLimitError struct {
	NextAllowedAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.NextAllowedAt.Format(time.RFC3339))
}

// Config 是编排策略参数，时间量使用 time.ParseDuration 格式。
type Config struct {
	UserCooldown    string `yaml:"user_cooldown" json:"user_cooldown"`
	JobTimeout      string `yaml:"job_timeout" json:"job_timeout"`
	LinkedInRecheck string `yaml:"linkedin_recheck" json:"linkedin_recheck"`
	Retention       string `yaml:"retention" json:"retention"`
	PollInterval    string `yaml:"poll_interval" json:"poll_interval"`
	Workers         int    `yaml:"workers" json:"workers"`
}

// Orchestrator 管理 ScrapeJob 状态机：触发去重、限流、
// 后台派发与终态回写。抓取与重算在有界工作池中执行，
// 同一用户的任务通过用户级互斥串行化。
type Orchestrator struct {
	store     Store
	collector Collector
	engine    SkillEngine
	emitter   Emitter
	logger    *logrus.Logger

	cooldown  time.Duration
	timeout   time.Duration
	recheck   time.Duration
	retention time.Duration
	poll      time.Duration

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	polling atomic.Bool

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	newTicker func(time.Duration) ticker
	now       func() time.Time
}

// New 创建 Orchestrator，解析配置并填充默认值。
func New(store Store, collector Collector, engine SkillEngine, emitter Emitter, cfg Config, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		store:     store,
		collector: collector,
		engine:    engine,
		emitter:   emitter,
		logger:    logger,
		cooldown:  parseDuration(cfg.UserCooldown, 10*time.Minute),
		timeout:   parseDuration(cfg.JobTimeout, 45*time.Second),
		recheck:   parseDuration(cfg.LinkedInRecheck, 7*24*time.Hour),
		retention: parseDuration(cfg.Retention, 30*24*time.Hour),
		poll:      parseDuration(cfg.PollInterval, 30*time.Second),
		sem:       semaphore.NewWeighted(int64(workers)),
		userLocks: make(map[string]*sync.Mutex),
		newTicker: defaultTicker,
		now:       time.Now,
	}
}

// Trigger 接受一次触发：用户触发受冷却窗口限制，任何来源
// 都会合并到同一用户同类型的在途任务上。接受的任务立即派发，
// 调用方不等待执行。
func (o *Orchestrator) Trigger(ctx context.Context, userID string, kind model.JobKind, source model.TriggerSource) (*model.ScrapeJob, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	now := o.now()

	if source == model.TriggerUser {
		last, err := o.store.LastUserScrapeJob(ctx, userID, kind)
		switch {
		case err == nil:
			next := last.CreatedAt.Add(o.cooldown)
			if now.Before(next) {
				return nil, &RateLimitError{NextAllowedAt: next}
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("check rate window: %w", err)
		}
	}

	active, err := o.store.FindActiveScrapeJob(ctx, userID, kind, now)
	switch {
	case err == nil:
		// 在途任务兜底，不重复创建。
		return active, nil
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("find active job: %w", err)
	}

	job := &model.ScrapeJob{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Status:      model.JobStatusPending,
		Trigger:     source,
		ScheduledAt: now,
	}
	if err := o.store.CreateScrapeJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create scrape job: %w", err)
	}

	o.dispatch(job)
	return job, nil
}

// Schedule 登记一个未来执行的任务，不立即派发，由调度循环到期提升。
func (o *Orchestrator) Schedule(ctx context.Context, userID string, kind model.JobKind, at time.Time) (*model.ScrapeJob, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}

	active, err := o.store.FindActiveScrapeJob(ctx, userID, kind, at)
	switch {
	case err == nil:
		return active, nil
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("find active job: %w", err)
	}

	job := &model.ScrapeJob{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Status:      model.JobStatusPending,
		Trigger:     model.TriggerSchedule,
		ScheduledAt: at,
	}
	if err := o.store.CreateScrapeJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create scheduled job: %w", err)
	}
	return job, nil
}

// Wait 等待所有在途后台任务结束，供退出与测试使用。
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// dispatch 把任务交给后台工作池执行，触发路径立即返回。
func (o *Orchestrator) dispatch(job *model.ScrapeJob) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// 与触发请求解耦：请求结束不取消后台工作。
		ctx := context.Background()

		if err := o.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer o.sem.Release(1)

		lock := o.userLock(job.UserID)
		lock.Lock()
		defer lock.Unlock()

		claimed, err := o.store.StartScrapeJob(ctx, job.ID, o.now())
		if err != nil {
			o.logger.WithError(err).WithField("job", job.ID).Error("claim scrape job")
			return
		}
		if !claimed {
			// 其他派发方已经抢到任务。
			return
		}

		runCtx, cancel := context.WithTimeout(ctx, o.timeout)
		changes, runErr := o.run(runCtx, job)
		cancel()

		msg := ""
		if runErr != nil {
			msg = runErr.Error()
			o.logger.WithError(runErr).WithFields(logrus.Fields{"job": job.ID, "user": job.UserID}).Warn("scrape job failed")
		}
		if err := o.store.FinishScrapeJob(ctx, job.ID, o.now(), msg, changes); err != nil {
			o.logger.WithError(err).WithField("job", job.ID).Error("finish scrape job")
			return
		}

		o.afterRun(ctx, job, changes, runErr)
	}()
}

// run 执行一次抓取与重算，返回是否发现变化。
func (o *Orchestrator) run(ctx context.Context, job *model.ScrapeJob) (bool, error) {
	changes := false
	switch job.Kind {
	case model.JobKindGitHub:
		changed, err := o.collector.CollectGitHub(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("collect github: %w", err)
		}
		changes = changed
	case model.JobKindLinkedIn:
		changed, err := o.collector.CollectLinkedIn(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("collect linkedin: %w", err)
		}
		changes = changed
	case model.JobKindFull:
		ghChanged, err := o.collector.CollectGitHub(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("collect github: %w", err)
		}
		liChanged, err := o.collector.CollectLinkedIn(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("collect linkedin: %w", err)
		}
		changes = ghChanged || liChanged
	}

	skills, err := o.engine.Recompute(ctx, job.UserID)
	if err != nil {
		return changes, fmt.Errorf("recompute skills: %w", err)
	}
	if err := o.store.UpsertSkillEvidence(ctx, skills); err != nil {
		return changes, fmt.Errorf("persist skills: %w", err)
	}
	return changes, nil
}

// afterRun 处理完成后的副作用：通知与 LinkedIn 的周期性复查。
func (o *Orchestrator) afterRun(ctx context.Context, job *model.ScrapeJob, changes bool, runErr error) {
	if o.emitter != nil {
		ev := notifier.Event{
			UserID:       job.UserID,
			JobID:        job.ID,
			Kind:         job.Kind,
			ChangesFound: changes,
			At:           o.now(),
		}
		if runErr != nil {
			ev.Type = notifier.EventScrapeFailed
			ev.Message = runErr.Error()
		} else {
			ev.Type = notifier.EventProfileRefreshed
			ev.Message = "evidence refresh completed"
		}
		if err := o.emitter.Emit(ctx, ev); err != nil {
			o.logger.WithError(err).WithField("job", job.ID).Warn("emit notification")
		}
	}

	if runErr == nil && (job.Kind == model.JobKindLinkedIn || job.Kind == model.JobKindFull) {
		if _, err := o.Schedule(ctx, job.UserID, model.JobKindLinkedIn, o.now().Add(o.recheck)); err != nil {
			o.logger.WithError(err).WithField("user", job.UserID).Warn("schedule linkedin recheck")
		}
	}
}

func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.userLocks[userID] = lock
	}
	return lock
}

func validKind(kind model.JobKind) error {
	switch kind {
	case model.JobKindGitHub, model.JobKindLinkedIn, model.JobKindFull:
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", kind)
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
