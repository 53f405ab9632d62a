package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skillradar/internal/ats"
	"skillradar/internal/model"
	"skillradar/internal/orchestrator"
	"skillradar/internal/parser"
	"skillradar/internal/storage"
	"skillradar/internal/subscription"
	"skillradar/internal/webhook"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// maxWebhookBody 限制 webhook 请求体大小。
const maxWebhookBody = 1 << 20

// Store 抽象存储接口。
type Store interface {
	CreateResumeEvidence(ctx context.Context, ev *model.ResumeEvidence) error
	GetResumeEvidence(ctx context.Context, id string) (*model.ResumeEvidence, error)
	LatestResumeEvidence(ctx context.Context, userID string) (*model.ResumeEvidence, error)
	CreateJobPosting(ctx context.Context, job *model.JobPosting) error
	GetJobPosting(ctx context.Context, id string) (*model.JobPosting, error)
	UpsertMatchScore(ctx context.Context, score *model.MatchScore) (*model.MatchScore, error)
	GetApplication(ctx context.Context, userID, jobID string) (*model.Application, error)
	SetApplicationScore(ctx context.Context, id string, score int) error
	ListSkillEvidence(ctx context.Context, userID string) ([]model.SkillEvidence, error)
	ListScrapeJobs(ctx context.Context, userID string, limit int) ([]model.ScrapeJob, error)
	UpsertWebhookRegistration(ctx context.Context, reg *model.WebhookRegistration) error
	GetWebhookRegistration(ctx context.Context, owner, repo string) (*model.WebhookRegistration, error)
	TouchWebhookRegistration(ctx context.Context, id uint, at time.Time) error
	UpsertUserAccount(ctx context.Context, acct *model.UserAccount) error
}

// Orchestrator 抽象任务触发接口。
type Orchestrator interface {
	Trigger(ctx context.Context, userID string, kind model.JobKind, source model.TriggerSource) (*model.ScrapeJob, error)
}

// Scorer 抽象 ATS 打分接口。
type Scorer interface {
	Score(resume *model.ResumeEvidence, rawText string, job *model.JobPosting) ats.Result
}

// ResumeParser 抽象简历解析接口。
type ResumeParser interface {
	Parse(ctx context.Context, rawText string) (parser.Fields, error)
}

// SubscriptionService 处理通知订阅创建。
type SubscriptionService interface {
	Create(ctx context.Context, req subscription.Request) (model.NotificationSubscription, error)
}

// Options 聚合 Handler 依赖。
type Options struct {
	Store          Store
	Orchestrator   Orchestrator
	Scorer         Scorer
	Parser         ResumeParser
	Subscriptions  SubscriptionService
	Filter         *webhook.Filter
	FallbackSecret string
	Logger         *logrus.Logger
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(opts Options) http.Handler {
	if opts.Filter == nil {
		opts.Filter = webhook.NewFilter(webhook.DefaultConfig())
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	s := &server{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/webhooks/github/{owner}/{repo}", s.handleGitHubWebhook)
	mux.HandleFunc("POST /api/webhooks/registrations", s.handleCreateRegistration)
	mux.HandleFunc("POST /api/users/{id}/refresh", s.handleRefresh)
	mux.HandleFunc("PUT /api/users/{id}/accounts", s.handleUpsertAccounts)
	mux.HandleFunc("POST /api/users/{id}/subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("GET /api/users/{id}/skills", s.handleListSkills)
	mux.HandleFunc("GET /api/users/{id}/jobs", s.handleListJobs)
	mux.HandleFunc("POST /api/resumes", s.handleCreateResume)
	mux.HandleFunc("POST /api/jobs", s.handleCreateJobPosting)
	mux.HandleFunc("POST /api/scores", s.handleScore)
	return mux
}

type server struct {
	opts Options
}

// handleGitHubWebhook 处理 GitHub 事件：先验签，再过滤，最后触发重抓。
// 仓库由路径段标识，密钥因此在读取请求体之前就已确定；签名针对
// 原始字节校验，JSON 解析永远发生在验签之后。
func (s *server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "missing signature"})
		return
	}

	reg, err := s.opts.Store.GetWebhookRegistration(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "lookup registration"})
			return
		}
		reg = nil
	}

	secret := s.opts.FallbackSecret
	if reg != nil && reg.Secret != "" {
		secret = reg.Secret
	}
	if secret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "no secret registered for repository"})
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "unreadable body"})
		return
	}
	if !webhook.VerifySignature(rawBody, signature, secret) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "signature mismatch"})
		return
	}

	var ev webhook.Event
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "malformed payload"})
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "ping" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "pong"})
		return
	}

	if reg == nil || !reg.Active {
		// 仓库未绑定用户或绑定已停用，无法归属，不触发。
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "ignored"})
		return
	}

	if err := s.opts.Store.TouchWebhookRegistration(r.Context(), reg.ID, time.Now()); err != nil {
		s.opts.Logger.WithError(err).WithField("repo", ev.Repository.FullName).Warn("touch webhook registration")
	}

	if !s.opts.Filter.IsMeaningfulChange(eventType, ev) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "ignored"})
		return
	}

	job, err := s.opts.Orchestrator.Trigger(r.Context(), reg.UserID, model.JobKindGitHub, model.TriggerWebhook)
	if err != nil {
		s.opts.Logger.WithError(err).WithField("user", reg.UserID).Error("trigger webhook scrape")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "trigger failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "accepted", "job_id": job.ID})
}

func (s *server) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Owner  string `json:"owner"`
		Repo   string `json:"repo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	req.Owner = strings.TrimSpace(req.Owner)
	req.Repo = strings.TrimSpace(req.Repo)
	if req.UserID == "" || req.Owner == "" || req.Repo == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id, owner and repo are required"})
		return
	}

	secret, err := newSecret()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "generate secret"})
		return
	}
	reg := &model.WebhookRegistration{
		UserID: req.UserID,
		Owner:  req.Owner,
		Repo:   req.Repo,
		Secret: secret,
		Active: true,
	}
	if err := s.opts.Store.UpsertWebhookRegistration(r.Context(), reg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store registration"})
		return
	}

	// secret 只在这里返回一次，之后无法再查询。
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     reg.ID,
		"owner":  reg.Owner,
		"repo":   reg.Repo,
		"secret": secret,
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	kind := model.JobKindFull
	if r.Body != nil {
		var req struct {
			Kind string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Kind != "" {
			kind = model.JobKind(req.Kind)
		}
	}

	job, err := s.opts.Orchestrator.Trigger(r.Context(), userID, kind, model.TriggerUser)
	if err != nil {
		var rl *orchestrator.RateLimitError
		if errors.As(err, &rl) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":           "refresh window not elapsed",
				"next_allowed_at": rl.NextAllowedAt.UTC().Format(time.RFC3339),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) handleUpsertAccounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GitHubUsername string `json:"github_username"`
		LinkedInURL    string `json:"linkedin_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	acct := &model.UserAccount{
		UserID:         r.PathValue("id"),
		GitHubUsername: strings.TrimSpace(req.GitHubUsername),
		LinkedInURL:    strings.TrimSpace(req.LinkedInURL),
	}
	if err := s.opts.Store.UpsertUserAccount(r.Context(), acct); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store account"})
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	if s.opts.Subscriptions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "subscriptions disabled"})
		return
	}
	var req subscription.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	req.UserID = r.PathValue("id")

	sub, err := s.opts.Subscriptions.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// skillView 是技能列表的输出行。candidate 视图附带提升建议与
// 最强仓库等原始证据，recruiter 视图只保留聚合结论。
type skillView struct {
	Skill           string               `json:"skill"`
	Label           string               `json:"label"`
	Verified        bool                 `json:"verified"`
	Source          model.SkillSource    `json:"source"`
	LastUsedPeriod  string               `json:"last_used_period,omitempty"`
	Tips            []string             `json:"tips,omitempty"`
	ConfidenceScore *int                 `json:"confidence_score,omitempty"`
	RepoCount       *int                 `json:"repo_count,omitempty"`
	TotalCommits    *int                 `json:"total_commits,omitempty"`
	StrongestRepo   *model.StrongestRepo `json:"strongest_repo,omitempty"`
}

func (s *server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "candidate"
	}
	if view != "candidate" && view != "recruiter" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "view must be candidate or recruiter"})
		return
	}

	skills, err := s.opts.Store.ListSkillEvidence(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list skills"})
		return
	}

	verified := make([]skillView, 0)
	evidenceFound := make([]skillView, 0)
	selfReported := make([]skillView, 0)
	for _, ev := range skills {
		row := skillView{
			Skill:          ev.Skill,
			Label:          ev.DisplayLabel,
			Verified:       ev.Verified,
			Source:         ev.Source,
			LastUsedPeriod: ev.LastUsedPeriod,
		}
		score := ev.ConfidenceScore
		row.ConfidenceScore = &score
		if view == "candidate" {
			repos, commits := ev.RepoCount, ev.TotalCommits
			row.RepoCount = &repos
			row.TotalCommits = &commits
			row.StrongestRepo = ev.Strongest()
			row.Tips = improvementTips(ev)
		}

		switch {
		case ev.Verified:
			verified = append(verified, row)
		case ev.Source == model.SkillSourceLinkedIn:
			selfReported = append(selfReported, row)
		default:
			evidenceFound = append(evidenceFound, row)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"view":           view,
		"verified":       verified,
		"evidence_found": evidenceFound,
		"self_reported":  selfReported,
	})
}

// improvementTips 给候选人视图生成可执行的提升建议。
func improvementTips(ev model.SkillEvidence) []string {
	if ev.Verified {
		return nil
	}
	var tips []string
	if ev.Source == model.SkillSourceLinkedIn {
		tips = append(tips, "publish a public repository using this skill")
		return tips
	}
	if !ev.StrongestRepoReadme {
		tips = append(tips, "add a README to your strongest repository")
	}
	if !ev.StrongestRepoDemo {
		tips = append(tips, "link a live demo to showcase production use")
	}
	if ev.TotalCommits < 10 {
		tips = append(tips, "more commit history raises confidence")
	}
	return tips
}

func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	jobs, err := s.opts.Store.ListScrapeJobs(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list jobs"})
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *server) handleCreateResume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		RawText string `json:"raw_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.RawText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and raw_text are required"})
		return
	}

	fields, err := s.opts.Parser.Parse(r.Context(), req.RawText)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	ev := &model.ResumeEvidence{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		RawText:         req.RawText,
		Name:            fields.Name,
		Email:           fields.Email,
		Phone:           fields.Phone,
		Skills:          datatypes.JSONSlice[string](fields.Skills),
		WorkHistory:     datatypes.JSONSlice[model.WorkEntry](fields.WorkHistory),
		Education:       datatypes.JSONSlice[model.EducationEntry](fields.Education),
		YearsExperience: fields.YearsExperience,
		UploadedAt:      time.Now(),
	}
	if err := s.opts.Store.CreateResumeEvidence(r.Context(), ev); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store resume"})
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *server) handleCreateJobPosting(w http.ResponseWriter, r *http.Request) {
	var req model.JobPosting
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := s.opts.Store.CreateJobPosting(r.Context(), &req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store job posting"})
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// scoreResponse 的五个百分比都是四舍五入后的整数。
type scoreResponse struct {
	ScoreRecordID      string   `json:"score_record_id"`
	ResumeID           string   `json:"resume_id"`
	JobID              string   `json:"job_id"`
	Overall            int      `json:"overall"`
	SkillMatch         int      `json:"skill_match"`
	ExperienceMatch    int      `json:"experience_match"`
	EducationMatch     int      `json:"education_match"`
	KeywordDensity     int      `json:"keyword_density"`
	SemanticSimilarity int      `json:"semantic_similarity"`
	CommonSkills       []string `json:"common_skills"`
	MissingSkills      []string `json:"missing_skills"`
}

func (s *server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		ResumeID string `json:"resume_id"`
		JobID    string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if req.JobID == "" || (req.UserID == "" && req.ResumeID == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_id and one of user_id or resume_id are required"})
		return
	}

	job, err := s.opts.Store.GetJobPosting(r.Context(), req.JobID)
	if err != nil {
		writeNotFoundOr500(w, err, "job posting not found")
		return
	}

	var resume *model.ResumeEvidence
	if req.ResumeID != "" {
		resume, err = s.opts.Store.GetResumeEvidence(r.Context(), req.ResumeID)
	} else {
		resume, err = s.opts.Store.LatestResumeEvidence(r.Context(), req.UserID)
	}
	if err != nil {
		writeNotFoundOr500(w, err, "resume not found")
		return
	}
	if strings.TrimSpace(resume.RawText) == "" ||
		(len(resume.Skills) == 0 && len(resume.WorkHistory) == 0 && len(resume.Education) == 0) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resume not yet parsed, upload it again"})
		return
	}
	if req.UserID == "" {
		req.UserID = resume.UserID
	}

	result := s.opts.Scorer.Score(resume, resume.RawText, job)

	record := &model.MatchScore{
		ID:                 uuid.NewString(),
		ResumeID:           resume.ID,
		JobID:              job.ID,
		Overall:            result.Score,
		SkillMatch:         result.Breakdown.SkillMatch,
		ExperienceMatch:    result.Breakdown.ExperienceMatch,
		EducationMatch:     result.Breakdown.EducationMatch,
		KeywordDensity:     result.Breakdown.KeywordDensity,
		SemanticSimilarity: result.Breakdown.SemanticSimilarity,
		CommonSkills:       datatypes.JSONSlice[string](result.CommonSkills),
		MissingSkills:      datatypes.JSONSlice[string](result.MissingSkills),
	}
	saved, err := s.opts.Store.UpsertMatchScore(r.Context(), record)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store match score"})
		return
	}

	// 申请记录上的 AI 分只在打分时显式回写，没有申请就不产生记录。
	if app, err := s.opts.Store.GetApplication(r.Context(), req.UserID, job.ID); err == nil {
		if err := s.opts.Store.SetApplicationScore(r.Context(), app.ID, result.Score); err != nil {
			s.opts.Logger.WithError(err).WithField("application", app.ID).Warn("write back ai score")
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.opts.Logger.WithError(err).Warn("lookup application")
	}

	writeJSON(w, http.StatusOK, scoreResponse{
		ScoreRecordID:      saved.ID,
		ResumeID:           resume.ID,
		JobID:              job.ID,
		Overall:            result.Score,
		SkillMatch:         pct(result.Breakdown.SkillMatch),
		ExperienceMatch:    pct(result.Breakdown.ExperienceMatch),
		EducationMatch:     pct(result.Breakdown.EducationMatch),
		KeywordDensity:     pct(result.Breakdown.KeywordDensity),
		SemanticSimilarity: pct(result.Breakdown.SemanticSimilarity),
		CommonSkills:       result.CommonSkills,
		MissingSkills:      result.MissingSkills,
	})
}

func pct(v float64) int {
	return int(math.Round(v * 100))
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func writeNotFoundOr500(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
