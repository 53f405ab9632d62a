package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"skillradar/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

// Store 封装 SQLite 数据库访问，是证据数据的唯一持有者。
// 其他组件只通过显式传入的 Store 句柄读写，不依赖全局连接。
type Store struct {
	db *gorm.DB
}

// RepoUpsertResult 表示仓库证据写入结果。
// Changed 在出现新仓库或已有仓库指标变化时为 true。
type RepoUpsertResult struct {
	Created int
	Changed bool
}

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&model.ResumeEvidence{},
		&model.RepoEvidence{},
		&model.LinkedInProfile{},
		&model.UserAccount{},
		&model.SkillEvidence{},
		&model.JobPosting{},
		&model.MatchScore{},
		&model.Application{},
		&model.ScrapeJob{},
		&model.WebhookRegistration{},
		&model.NotificationSubscription{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// CreateResumeEvidence 写入一条新的简历解析记录，记录不可变。
func (s *Store) CreateResumeEvidence(ctx context.Context, ev *model.ResumeEvidence) error {
	if ev.ID == "" {
		return fmt.Errorf("resume evidence id required")
	}
	if ev.UserID == "" {
		return fmt.Errorf("resume evidence user id required")
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("create resume evidence: %w", err)
	}
	return nil
}

// GetResumeEvidence 按 ID 获取简历记录。
func (s *Store) GetResumeEvidence(ctx context.Context, id string) (*model.ResumeEvidence, error) {
	var ev model.ResumeEvidence
	if err := s.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resume evidence: %w", err)
	}
	return &ev, nil
}

// LatestResumeEvidence 返回用户最近一次上传的简历，匹配以此为准。
func (s *Store) LatestResumeEvidence(ctx context.Context, userID string) (*model.ResumeEvidence, error) {
	var ev model.ResumeEvidence
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest resume evidence: %w", err)
	}
	return &ev, nil
}

// UpsertRepoEvidence 写入仓库证据，按 (user_id, repo_name) 去重，
// 并与已有记录比对以判断是否发生实质变化。
func (s *Store) UpsertRepoEvidence(ctx context.Context, userID string, repos []model.RepoEvidence) (RepoUpsertResult, error) {
	res := RepoUpsertResult{}
	if len(repos) == 0 {
		return res, nil
	}

	names := make([]string, 0, len(repos))
	for i := range repos {
		repos[i].UserID = userID
		names = append(names, repos[i].RepoName)
	}

	var existing []model.RepoEvidence
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND repo_name IN ?", userID, names).
		Find(&existing).Error; err != nil {
		return res, fmt.Errorf("query existing repos: %w", err)
	}

	known := make(map[string]model.RepoEvidence, len(existing))
	for _, r := range existing {
		known[r.RepoName] = r
	}

	for _, r := range repos {
		prev, ok := known[r.RepoName]
		if !ok {
			res.Created++
			res.Changed = true
			continue
		}
		if prev.Stars != r.Stars || prev.AuthoredCommits != r.AuthoredCommits || !prev.PushedAt.Equal(r.PushedAt) {
			res.Changed = true
		}
	}

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "repo_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"language",
			"topics",
			"stars",
			"authored_commits",
			"fork",
			"has_readme",
			"live_demo_url",
			"pushed_at",
			"updated_at",
		}),
	}).Create(&repos)
	if tx.Error != nil {
		return res, fmt.Errorf("upsert repo evidence: %w", tx.Error)
	}

	return res, nil
}

// ListRepoEvidence 返回用户的全部仓库证据。
func (s *Store) ListRepoEvidence(ctx context.Context, userID string) ([]model.RepoEvidence, error) {
	var repos []model.RepoEvidence
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("repo_name ASC").
		Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("list repo evidence: %w", err)
	}
	return repos, nil
}

// UpsertLinkedInProfile 写入 LinkedIn 资料，每个用户一行覆盖。
func (s *Store) UpsertLinkedInProfile(ctx context.Context, p *model.LinkedInProfile) error {
	if p.UserID == "" {
		return fmt.Errorf("linkedin profile user id required")
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"headline", "skills", "fetched_at", "updated_at"}),
	}).Create(p)
	if tx.Error != nil {
		return fmt.Errorf("upsert linkedin profile: %w", tx.Error)
	}
	return nil
}

// GetLinkedInProfile 获取用户的 LinkedIn 资料。
func (s *Store) GetLinkedInProfile(ctx context.Context, userID string) (*model.LinkedInProfile, error) {
	var p model.LinkedInProfile
	if err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get linkedin profile: %w", err)
	}
	return &p, nil
}

// UpsertUserAccount 写入用户外部账号绑定。
func (s *Store) UpsertUserAccount(ctx context.Context, acct *model.UserAccount) error {
	if acct.UserID == "" {
		return fmt.Errorf("user account user id required")
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"github_username", "linkedin_url", "updated_at"}),
	}).Create(acct)
	if tx.Error != nil {
		return fmt.Errorf("upsert user account: %w", tx.Error)
	}
	return nil
}

// GetUserAccount 获取用户外部账号绑定。
func (s *Store) GetUserAccount(ctx context.Context, userID string) (*model.UserAccount, error) {
	var acct model.UserAccount
	if err := s.db.WithContext(ctx).First(&acct, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user account: %w", err)
	}
	return &acct, nil
}

// UpsertSkillEvidence 批量写入技能置信度记录，按 (user_id, skill) 去重覆盖。
// 旧技能不删除：一项技能一旦出现就保留，置信度只随重算更新。
func (s *Store) UpsertSkillEvidence(ctx context.Context, skills []model.SkillEvidence) error {
	if len(skills) == 0 {
		return nil
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "skill"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source",
			"repo_count",
			"total_commits",
			"stars_on_skill_repos",
			"has_production_project",
			"language_percentage",
			"last_used_period",
			"strongest_repo_name",
			"strongest_repo_stars",
			"strongest_repo_commits",
			"strongest_repo_readme",
			"strongest_repo_demo",
			"confidence_score",
			"verified",
			"display_label",
			"updated_at",
		}),
	}).Create(&skills)
	if tx.Error != nil {
		return fmt.Errorf("upsert skill evidence: %w", tx.Error)
	}
	return nil
}

// ListSkillEvidence 返回用户全部技能记录，按置信度倒序。
func (s *Store) ListSkillEvidence(ctx context.Context, userID string) ([]model.SkillEvidence, error) {
	var skills []model.SkillEvidence
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("confidence_score DESC").
		Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("list skill evidence: %w", err)
	}
	return skills, nil
}

// CreateJobPosting 写入岗位。
func (s *Store) CreateJobPosting(ctx context.Context, job *model.JobPosting) error {
	if job.ID == "" {
		return fmt.Errorf("job posting id required")
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job posting: %w", err)
	}
	return nil
}

// GetJobPosting 按 ID 获取岗位。
func (s *Store) GetJobPosting(ctx context.Context, id string) (*model.JobPosting, error) {
	var job model.JobPosting
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job posting: %w", err)
	}
	return &job, nil
}

// UpsertMatchScore 按 (resume_id, job_id) 写入匹配结果。
// 已存在时保留原记录 ID 与创建时间，其余字段覆盖，保证重复打分幂等。
func (s *Store) UpsertMatchScore(ctx context.Context, score *model.MatchScore) (*model.MatchScore, error) {
	if score.ResumeID == "" || score.JobID == "" {
		return nil, fmt.Errorf("match score resume id and job id required")
	}

	var existing model.MatchScore
	err := s.db.WithContext(ctx).
		Where("resume_id = ? AND job_id = ?", score.ResumeID, score.JobID).
		First(&existing).Error
	switch {
	case err == nil:
		score.ID = existing.ID
		score.CreatedAt = existing.CreatedAt
		if err := s.db.WithContext(ctx).Save(score).Error; err != nil {
			return nil, fmt.Errorf("update match score: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(score).Error; err != nil {
			return nil, fmt.Errorf("create match score: %w", err)
		}
	default:
		return nil, fmt.Errorf("query match score: %w", err)
	}

	return score, nil
}

// GetMatchScore 按 (resume_id, job_id) 获取匹配结果。
func (s *Store) GetMatchScore(ctx context.Context, resumeID, jobID string) (*model.MatchScore, error) {
	var score model.MatchScore
	err := s.db.WithContext(ctx).
		Where("resume_id = ? AND job_id = ?", resumeID, jobID).
		First(&score).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get match score: %w", err)
	}
	return &score, nil
}

// CreateApplication 写入申请记录。
func (s *Store) CreateApplication(ctx context.Context, app *model.Application) error {
	if app.ID == "" {
		return fmt.Errorf("application id required")
	}
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetApplication 获取用户对某岗位的申请记录。
func (s *Store) GetApplication(ctx context.Context, userID, jobID string) (*model.Application, error) {
	var app model.Application
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &app, nil
}

// SetApplicationScore 回写申请记录上的 AI 分数，由打分调用方显式触发。
func (s *Store) SetApplicationScore(ctx context.Context, id string, score int) error {
	tx := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("id = ?", id).
		Update("ai_score", score)
	if tx.Error != nil {
		return fmt.Errorf("set application score: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateScrapeJob 写入新的抓取任务。
func (s *Store) CreateScrapeJob(ctx context.Context, job *model.ScrapeJob) error {
	if job.ID == "" {
		return fmt.Errorf("scrape job id required")
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create scrape job: %w", err)
	}
	return nil
}

// GetScrapeJob 按 ID 获取任务。
func (s *Store) GetScrapeJob(ctx context.Context, id string) (*model.ScrapeJob, error) {
	var job model.ScrapeJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scrape job: %w", err)
	}
	return &job, nil
}

// StartScrapeJob 尝试将任务从 pending 置为 running。
// 通过影响行数判断是否抢占成功，重复派发时只有一个调用方能拿到任务。
func (s *Store) StartScrapeJob(ctx context.Context, id string, at time.Time) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&model.ScrapeJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]any{"status": model.JobStatusRunning, "started_at": at})
	if tx.Error != nil {
		return false, fmt.Errorf("start scrape job: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// FinishScrapeJob 将 running 任务置为终态；errMessage 非空时记为 failed。
// 终态任务不会被再次更新。
func (s *Store) FinishScrapeJob(ctx context.Context, id string, at time.Time, errMessage string, changes bool) error {
	status := model.JobStatusCompleted
	if errMessage != "" {
		status = model.JobStatusFailed
	}
	tx := s.db.WithContext(ctx).Model(&model.ScrapeJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusRunning).
		Updates(map[string]any{
			"status":        status,
			"completed_at":  at,
			"error_message": errMessage,
			"changes_found": changes,
		})
	if tx.Error != nil {
		return fmt.Errorf("finish scrape job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("finish scrape job: id %s not running", id)
	}
	return nil
}

// FindActiveScrapeJob 查找同一用户同一类型的在途任务（running，或已到期的 pending）。
// 用于把重复触发合并到在途任务上。
func (s *Store) FindActiveScrapeJob(ctx context.Context, userID string, kind model.JobKind, now time.Time) (*model.ScrapeJob, error) {
	var job model.ScrapeJob
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Where("status = ? OR (status = ? AND scheduled_at <= ?)", model.JobStatusRunning, model.JobStatusPending, now).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find active scrape job: %w", err)
	}
	return &job, nil
}

// LastUserScrapeJob 返回用户最近一次用户触发的同类任务，供限流窗口判断。
func (s *Store) LastUserScrapeJob(ctx context.Context, userID string, kind model.JobKind) (*model.ScrapeJob, error) {
	var job model.ScrapeJob
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND trigger = ?", userID, kind, model.TriggerUser).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("last user scrape job: %w", err)
	}
	return &job, nil
}

// DueScheduledJobs 返回已到执行时间的 pending 任务，按计划时间升序。
func (s *Store) DueScheduledJobs(ctx context.Context, now time.Time, limit int) ([]model.ScrapeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []model.ScrapeJob
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", model.JobStatusPending, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("due scheduled jobs: %w", err)
	}
	return jobs, nil
}

// ListScrapeJobs 返回用户任务历史，按创建时间倒序。
func (s *Store) ListScrapeJobs(ctx context.Context, userID string, limit int) ([]model.ScrapeJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []model.ScrapeJob
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list scrape jobs: %w", err)
	}
	return jobs, nil
}

// CleanupScrapeJobs 删除保留窗口之外的终态任务，返回删除数量。
func (s *Store) CleanupScrapeJobs(ctx context.Context, before time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}, before).
		Delete(&model.ScrapeJob{})
	if tx.Error != nil {
		return 0, fmt.Errorf("cleanup scrape jobs: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// UpsertWebhookRegistration 写入仓库绑定，按 (owner, repo) 覆盖。
func (s *Store) UpsertWebhookRegistration(ctx context.Context, reg *model.WebhookRegistration) error {
	if reg.Owner == "" || reg.Repo == "" {
		return fmt.Errorf("webhook registration owner and repo required")
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "repo"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "secret", "active", "updated_at"}),
	}).Create(reg)
	if tx.Error != nil {
		return fmt.Errorf("upsert webhook registration: %w", tx.Error)
	}
	return nil
}

// GetWebhookRegistration 按仓库定位绑定记录。
func (s *Store) GetWebhookRegistration(ctx context.Context, owner, repo string) (*model.WebhookRegistration, error) {
	var reg model.WebhookRegistration
	err := s.db.WithContext(ctx).
		Where("owner = ? AND repo = ?", owner, repo).
		First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get webhook registration: %w", err)
	}
	return &reg, nil
}

// TouchWebhookRegistration 更新绑定的最近触发时间。
func (s *Store) TouchWebhookRegistration(ctx context.Context, id uint, at time.Time) error {
	tx := s.db.WithContext(ctx).Model(&model.WebhookRegistration{}).
		Where("id = ?", id).
		Update("last_triggered_at", at)
	if tx.Error != nil {
		return fmt.Errorf("touch webhook registration: %w", tx.Error)
	}
	return nil
}

// UpsertNotificationSubscription 写入通知订阅，同一 (user_id, email) 覆盖更新。
func (s *Store) UpsertNotificationSubscription(ctx context.Context, sub *model.NotificationSubscription) error {
	if sub.UserID == "" || sub.Email == "" {
		return fmt.Errorf("notification subscription user_id and email required")
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel", "events", "active", "updated_at"}),
	}).Create(sub)
	if tx.Error != nil {
		return fmt.Errorf("upsert notification subscription: %w", tx.Error)
	}
	return nil
}

// ListNotificationSubscriptions 列出某用户的有效订阅。
func (s *Store) ListNotificationSubscriptions(ctx context.Context, userID string) ([]model.NotificationSubscription, error) {
	var subs []model.NotificationSubscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("id ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("list notification subscriptions: %w", err)
	}
	return subs, nil
}
