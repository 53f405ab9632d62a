package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skillradar/internal/ats"
	"skillradar/internal/model"
	"skillradar/internal/orchestrator"
	"skillradar/internal/parser"
	"skillradar/internal/storage"
	"skillradar/internal/subscription"

	"gorm.io/datatypes"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pushPayload(fullName string) []byte {
	return []byte(`{
		"ref": "refs/heads/main",
		"repository": {"full_name": "` + fullName + `", "default_branch": "main"},
		"sender": {"login": "alice"}
	}`)
}

func newTestHandler(store *stubAPIStore, orch *stubOrchestrator) http.Handler {
	return NewHandler(Options{
		Store:         store,
		Orchestrator:  orch,
		Scorer:        &stubScorer{},
		Parser:        &stubParser{},
		Subscriptions: &stubSubscriptions{},
	})
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newStubAPIStore(), &stubOrchestrator{})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(pushPayload("alice/radar")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: true}
	h := newTestHandler(store, &stubOrchestrator{})

	body := pushPayload("alice/radar")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body, "wrong-secret"))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookRejectsMalformedBodyAfterAuth(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: true}
	h := newTestHandler(store, &stubOrchestrator{})

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body, "topsecret"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookAuthFailureWinsOverMalformedBody(t *testing.T) {
	t.Parallel()

	// An unauthenticated body must never be parsed: a bad signature on
	// junk JSON is an auth failure, not a validation failure.
	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: true}
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", strings.NewReader("{not json"))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookIgnoresDeactivatedRegistration(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: false}
	orch := &stubOrchestrator{job: &model.ScrapeJob{ID: "job-1"}}
	h := newTestHandler(store, orch)

	body := pushPayload("alice/radar")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body, "topsecret"))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "ignored" {
		t.Fatalf("expected ignored, got %v", resp["message"])
	}
	if orch.triggers != 0 {
		t.Fatalf("deactivated registration must not trigger, got %d", orch.triggers)
	}
	if store.touched {
		t.Fatal("deactivated registration must not record a trigger time")
	}
}

func TestWebhookPingAfterVerification(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: true}
	orch := &stubOrchestrator{}
	h := newTestHandler(store, orch)

	body := pushPayload("alice/radar")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body, "topsecret"))
	req.Header.Set("X-GitHub-Event", "ping")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "pong" {
		t.Fatalf("expected pong, got %v", resp["message"])
	}
	if resp["ok"] != true {
		t.Fatalf("expected ok response, got %v", resp["ok"])
	}
	if orch.triggers != 0 {
		t.Fatalf("ping must not trigger a scrape, got %d", orch.triggers)
	}
}

func TestWebhookMeaningfulPushTriggersScrape(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: true}
	orch := &stubOrchestrator{job: &model.ScrapeJob{ID: "job-1"}}
	h := newTestHandler(store, orch)

	body := pushPayload("alice/radar")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body, "topsecret"))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if orch.triggers != 1 || orch.lastSource != model.TriggerWebhook || orch.lastKind != model.JobKindGitHub {
		t.Fatalf("unexpected trigger: %+v", orch)
	}
	if !store.touched {
		t.Fatal("registration should record last trigger time")
	}
}

func TestWebhookIgnoresNonDefaultBranchPush(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.registration = &model.WebhookRegistration{ID: 7, UserID: "u1", Owner: "alice", Repo: "radar", Secret: "topsecret", Active: true}
	orch := &stubOrchestrator{}
	h := newTestHandler(store, orch)

	body := []byte(`{
		"ref": "refs/heads/feature-x",
		"repository": {"full_name": "alice/radar", "default_branch": "main"},
		"sender": {"login": "alice"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github/alice/radar", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body, "topsecret"))
	req.Header.Set("X-GitHub-Event", "push")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if orch.triggers != 0 {
		t.Fatalf("branch push must not trigger, got %d triggers", orch.triggers)
	}
}

func TestRefreshReturnsRetryAfterWhenRateLimited(t *testing.T) {
	t.Parallel()

	next := time.Now().Add(7 * time.Minute)
	orch := &stubOrchestrator{err: &orchestrator.RateLimitError{NextAllowedAt: next}}
	h := newTestHandler(newStubAPIStore(), orch)

	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/refresh", strings.NewReader(`{"kind":"github"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["next_allowed_at"] == "" {
		t.Fatal("expected next_allowed_at in response")
	}
}

func TestRefreshDefaultsToFullKind(t *testing.T) {
	t.Parallel()

	orch := &stubOrchestrator{job: &model.ScrapeJob{ID: "job-9"}}
	h := newTestHandler(newStubAPIStore(), orch)

	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/refresh", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if orch.lastKind != model.JobKindFull || orch.lastSource != model.TriggerUser {
		t.Fatalf("unexpected trigger kind/source: %s/%s", orch.lastKind, orch.lastSource)
	}
}

func TestScoreReturns404ForUnknownJob(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newStubAPIStore(), &stubOrchestrator{})
	req := httptest.NewRequest(http.MethodPost, "/api/scores", strings.NewReader(`{"user_id":"u1","job_id":"nope"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestScorePersistsAndWritesBackApplication(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.job = &model.JobPosting{ID: "job-1", Title: "Backend"}
	store.resume = &model.ResumeEvidence{ID: "res-1", UserID: "u1", RawText: "go services", Skills: datatypes.JSONSlice[string]{"go"}}
	store.application = &model.Application{ID: "app-1", UserID: "u1", JobID: "job-1"}
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/scores", strings.NewReader(`{"user_id":"u1","job_id":"job-1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp scoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Overall != 72 || resp.SkillMatch != 50 || resp.KeywordDensity != 8 {
		t.Fatalf("unexpected score payload: %+v", resp)
	}
	if resp.ScoreRecordID == "" {
		t.Fatal("expected the persisted score record id in the response")
	}
	if store.storedScore == nil || store.storedScore.ResumeID != "res-1" {
		t.Fatalf("match score not persisted: %+v", store.storedScore)
	}
	if store.appScore == nil || *store.appScore != 72 {
		t.Fatalf("application score not written back: %v", store.appScore)
	}
}

func TestScoreWithoutApplicationDoesNotCreateOne(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.job = &model.JobPosting{ID: "job-1", Title: "Backend"}
	store.resume = &model.ResumeEvidence{ID: "res-1", UserID: "u1", RawText: "python etl", Skills: datatypes.JSONSlice[string]{"python"}}
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/scores", strings.NewReader(`{"resume_id":"res-1","job_id":"job-1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.appScore != nil {
		t.Fatal("score must not be written without an application")
	}
}

func TestScoreRejectsUnparsedResume(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.job = &model.JobPosting{ID: "job-1", Title: "Backend"}
	store.resume = &model.ResumeEvidence{ID: "res-1", UserID: "u1", RawText: "go services"}
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/scores", strings.NewReader(`{"resume_id":"res-1","job_id":"job-1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparsed resume, got %d", rec.Code)
	}
	if store.storedScore != nil {
		t.Fatal("no match score should be stored for an unparsed resume")
	}
}

func TestSkillsPartitionedByVerification(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.skills = []model.SkillEvidence{
		{UserID: "u1", Skill: "go", Verified: true, Source: model.SkillSourceBoth, ConfidenceScore: 85, DisplayLabel: "GitHub verified"},
		{UserID: "u1", Skill: "python", Verified: false, Source: model.SkillSourceGitHub, ConfidenceScore: 40, DisplayLabel: "Evidence found"},
		{UserID: "u1", Skill: "scrum", Verified: false, Source: model.SkillSourceLinkedIn, ConfidenceScore: 20, DisplayLabel: "Self-reported"},
	}
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/skills", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Verified      []skillView `json:"verified"`
		EvidenceFound []skillView `json:"evidence_found"`
		SelfReported  []skillView `json:"self_reported"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Verified) != 1 || len(resp.EvidenceFound) != 1 || len(resp.SelfReported) != 1 {
		t.Fatalf("unexpected partitions: %+v", resp)
	}
	// Candidate view carries tips alongside the raw evidence.
	if len(resp.SelfReported[0].Tips) == 0 {
		t.Fatal("self-reported skills should carry improvement tips")
	}
	if resp.EvidenceFound[0].ConfidenceScore == nil {
		t.Fatal("candidate view should expose the confidence score")
	}
}

func TestSkillsRecruiterViewOmitsRepoEvidence(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	store.skills = []model.SkillEvidence{
		{UserID: "u1", Skill: "go", Verified: true, Source: model.SkillSourceGitHub, ConfidenceScore: 85, RepoCount: 3, StrongestRepoName: "radar"},
	}
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/skills?view=recruiter", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp struct {
		Verified []skillView `json:"verified"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Verified) != 1 {
		t.Fatalf("expected one verified skill, got %+v", resp)
	}
	row := resp.Verified[0]
	if row.ConfidenceScore == nil || *row.ConfidenceScore != 85 {
		t.Fatalf("recruiter view keeps the aggregate score, got %+v", row)
	}
	if row.StrongestRepo != nil || row.RepoCount != nil {
		t.Fatalf("recruiter view must not expose per-repo evidence, got %+v", row)
	}
	if len(row.Tips) != 0 {
		t.Fatalf("recruiter view must not carry improvement tips, got %+v", row)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/skills", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode candidate response: %v", err)
	}
	cand := resp.Verified[0]
	if cand.StrongestRepo == nil || cand.StrongestRepo.Name != "radar" {
		t.Fatalf("candidate view should expose the strongest repo, got %+v", cand)
	}
}

func TestRegistrationReturnsSecretOnce(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/registrations", strings.NewReader(`{"user_id":"u1","owner":"alice","repo":"radar"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	secret, _ := resp["secret"].(string)
	if len(secret) != 64 {
		t.Fatalf("expected 32-byte hex secret, got %q", secret)
	}
	if store.storedRegistration == nil || store.storedRegistration.Secret != secret {
		t.Fatal("registration with secret must be persisted")
	}
}

func TestCreateSubscriptionUsesPathUser(t *testing.T) {
	t.Parallel()

	subs := &stubSubscriptions{}
	h := NewHandler(Options{
		Store:         newStubAPIStore(),
		Orchestrator:  &stubOrchestrator{},
		Scorer:        &stubScorer{},
		Parser:        &stubParser{},
		Subscriptions: subs,
	})

	body := `{"user_id":"someone-else","email":"a@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/subscriptions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	// The path segment wins over any user id in the body.
	if subs.lastRequest.UserID != "u1" {
		t.Fatalf("expected path user id, got %q", subs.lastRequest.UserID)
	}
}

func TestCreateResumeParsesAndStores(t *testing.T) {
	t.Parallel()

	store := newStubAPIStore()
	h := newTestHandler(store, &stubOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/resumes", strings.NewReader(`{"user_id":"u1","raw_text":"Alice\nGo engineer"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.storedResume == nil || store.storedResume.UserID != "u1" {
		t.Fatalf("resume not stored: %+v", store.storedResume)
	}
	if store.storedResume.ID == "" {
		t.Fatal("resume must get an id")
	}
	if len(store.storedResume.Skills) == 0 {
		t.Fatal("parsed skills must be stored")
	}
}

// --- stubs ---

type stubAPIStore struct {
	registration       *model.WebhookRegistration
	job                *model.JobPosting
	resume             *model.ResumeEvidence
	application        *model.Application
	skills             []model.SkillEvidence
	scrapeJobs         []model.ScrapeJob
	storedScore        *model.MatchScore
	storedResume       *model.ResumeEvidence
	storedRegistration *model.WebhookRegistration
	appScore           *int
	touched            bool
}

func newStubAPIStore() *stubAPIStore { return &stubAPIStore{} }

func (s *stubAPIStore) CreateResumeEvidence(ctx context.Context, ev *model.ResumeEvidence) error {
	s.storedResume = ev
	return nil
}

func (s *stubAPIStore) GetResumeEvidence(ctx context.Context, id string) (*model.ResumeEvidence, error) {
	if s.resume == nil || s.resume.ID != id {
		return nil, storage.ErrNotFound
	}
	return s.resume, nil
}

func (s *stubAPIStore) LatestResumeEvidence(ctx context.Context, userID string) (*model.ResumeEvidence, error) {
	if s.resume == nil || s.resume.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return s.resume, nil
}

func (s *stubAPIStore) CreateJobPosting(ctx context.Context, job *model.JobPosting) error {
	s.job = job
	return nil
}

func (s *stubAPIStore) GetJobPosting(ctx context.Context, id string) (*model.JobPosting, error) {
	if s.job == nil || s.job.ID != id {
		return nil, storage.ErrNotFound
	}
	return s.job, nil
}

func (s *stubAPIStore) UpsertMatchScore(ctx context.Context, score *model.MatchScore) (*model.MatchScore, error) {
	s.storedScore = score
	return score, nil
}

func (s *stubAPIStore) GetApplication(ctx context.Context, userID, jobID string) (*model.Application, error) {
	if s.application == nil || s.application.UserID != userID || s.application.JobID != jobID {
		return nil, storage.ErrNotFound
	}
	return s.application, nil
}

func (s *stubAPIStore) SetApplicationScore(ctx context.Context, id string, score int) error {
	s.appScore = &score
	return nil
}

func (s *stubAPIStore) ListSkillEvidence(ctx context.Context, userID string) ([]model.SkillEvidence, error) {
	return s.skills, nil
}

func (s *stubAPIStore) ListScrapeJobs(ctx context.Context, userID string, limit int) ([]model.ScrapeJob, error) {
	return s.scrapeJobs, nil
}

func (s *stubAPIStore) UpsertWebhookRegistration(ctx context.Context, reg *model.WebhookRegistration) error {
	reg.ID = 1
	s.storedRegistration = reg
	return nil
}

func (s *stubAPIStore) GetWebhookRegistration(ctx context.Context, owner, repo string) (*model.WebhookRegistration, error) {
	if s.registration == nil || s.registration.Owner != owner || s.registration.Repo != repo {
		return nil, storage.ErrNotFound
	}
	return s.registration, nil
}

func (s *stubAPIStore) TouchWebhookRegistration(ctx context.Context, id uint, at time.Time) error {
	s.touched = true
	return nil
}

func (s *stubAPIStore) UpsertUserAccount(ctx context.Context, acct *model.UserAccount) error {
	return nil
}

type stubOrchestrator struct {
	job        *model.ScrapeJob
	err        error
	triggers   int
	lastKind   model.JobKind
	lastSource model.TriggerSource
}

func (o *stubOrchestrator) Trigger(ctx context.Context, userID string, kind model.JobKind, source model.TriggerSource) (*model.ScrapeJob, error) {
	o.triggers++
	o.lastKind = kind
	o.lastSource = source
	if o.err != nil {
		return nil, o.err
	}
	if o.job != nil {
		return o.job, nil
	}
	return &model.ScrapeJob{ID: "job-stub", UserID: userID, Kind: kind}, nil
}

type stubScorer struct{}

func (s *stubScorer) Score(resume *model.ResumeEvidence, rawText string, job *model.JobPosting) ats.Result {
	return ats.Result{
		Score: 72,
		Breakdown: ats.Breakdown{
			SkillMatch:         0.5,
			ExperienceMatch:    1,
			EducationMatch:     1,
			KeywordDensity:     0.08,
			SemanticSimilarity: 0.61,
		},
		CommonSkills:  []string{"go"},
		MissingSkills: []string{"Kubernetes"},
	}
}

type stubSubscriptions struct {
	lastRequest subscription.Request
}

func (s *stubSubscriptions) Create(ctx context.Context, req subscription.Request) (model.NotificationSubscription, error) {
	s.lastRequest = req
	return model.NotificationSubscription{ID: 1, UserID: req.UserID, Email: req.Email, Channel: "email", Active: true}, nil
}

type stubParser struct{}

func (p *stubParser) Parse(ctx context.Context, rawText string) (parser.Fields, error) {
	return parser.Fields{Name: "Alice", Skills: []string{"Go"}}, nil
}
