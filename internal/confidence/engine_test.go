package confidence

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"skillradar/internal/model"
)

func TestRecomputeMergesSources(t *testing.T) {
	t.Parallel()

	pushed := time.Now().Add(-24 * time.Hour)
	src := &stubSource{
		repos: []RepoSignal{
			{Name: "u/api", Language: "Go", Stars: 5, AuthoredCommits: 120, PushedAt: pushed, LiveDemoURL: "https://api.example.com"},
			{Name: "u/cli", Language: "Go", Stars: 2, AuthoredCommits: 30, PushedAt: pushed},
		},
		linkedin: []string{"Go", "Kubernetes"},
	}
	eng := NewEngine(src, Config{}, nil)

	skills, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}

	byName := indexBySkill(skills)
	goSkill, ok := byName["go"]
	if !ok {
		t.Fatal("expected go skill entry")
	}
	if goSkill.Source != model.SkillSourceBoth {
		t.Fatalf("expected both sources for go, got %s", goSkill.Source)
	}
	if !goSkill.Verified {
		t.Fatalf("expected go verified with this much evidence, score=%d", goSkill.ConfidenceScore)
	}
	if goSkill.RepoCount != 2 || goSkill.TotalCommits != 150 || goSkill.StarsOnSkillRepos != 7 {
		t.Fatalf("unexpected go metrics: %+v", goSkill)
	}
	if !goSkill.HasProductionProject {
		t.Fatal("expected live-demo repo to mark production project")
	}
	if goSkill.StrongestRepoName != "u/api" {
		t.Fatalf("expected strongest repo u/api, got %s", goSkill.StrongestRepoName)
	}

	k8s, ok := byName["kubernetes"]
	if !ok {
		t.Fatal("expected kubernetes entry from linkedin")
	}
	if k8s.Source != model.SkillSourceLinkedIn || k8s.Verified {
		t.Fatalf("expected unverified linkedin-only entry, got %+v", k8s)
	}
	if k8s.ConfidenceScore > DefaultConfig().LinkedInOnlyCap {
		t.Fatalf("linkedin-only confidence above cap: %d", k8s.ConfidenceScore)
	}
}

func TestRecomputeScoresStayInBounds(t *testing.T) {
	t.Parallel()

	src := &stubSource{
		repos: []RepoSignal{
			{Name: "u/huge", Language: "Rust", Stars: 90000, AuthoredCommits: 50000, PushedAt: time.Now(), LiveDemoURL: "https://x"},
			{Name: "u/tiny", Language: "Lua", Stars: 0, AuthoredCommits: 1, PushedAt: time.Now().AddDate(-3, 0, 0), Fork: true},
		},
	}
	eng := NewEngine(src, Config{}, nil)

	skills, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	for _, s := range skills {
		if s.ConfidenceScore < 0 || s.ConfidenceScore > 100 {
			t.Fatalf("confidence out of bounds for %s: %d", s.Skill, s.ConfidenceScore)
		}
	}
}

func TestRecomputeGitHubFailureFallsBackToLinkedIn(t *testing.T) {
	t.Parallel()

	src := &stubSource{
		repoErr:  errors.New("github down"),
		linkedin: []string{"Python"},
	}
	eng := NewEngine(src, Config{}, nil)

	skills, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if len(skills) != 1 || skills[0].Skill != "python" {
		t.Fatalf("expected single linkedin fallback entry, got %+v", skills)
	}
	if skills[0].Verified {
		t.Fatal("fallback entry must not be verified")
	}
}

func TestRecomputeFailsWhenNoSourceAvailable(t *testing.T) {
	t.Parallel()

	src := &stubSource{repoErr: errors.New("github down"), liErr: errors.New("linkedin down")}
	eng := NewEngine(src, Config{}, nil)

	if _, err := eng.Recompute(context.Background(), "u1"); err == nil {
		t.Fatal("expected error when both sources fail")
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	t.Parallel()

	pushed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{
		repos: []RepoSignal{
			{Name: "u/svc", Language: "Go", Topics: []string{"grpc"}, Stars: 4, AuthoredCommits: 80, PushedAt: pushed},
		},
		linkedin: []string{"go"},
	}
	eng := NewEngine(src, Config{}, nil)
	eng.now = func() time.Time { return pushed.Add(24 * time.Hour) }

	first, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	second, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute second run error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical evidence:\n%+v\n%+v", first, second)
	}
}

func TestMultiRepoStarFloor(t *testing.T) {
	t.Parallel()

	old := time.Now().AddDate(-2, 0, 0)
	src := &stubSource{
		repos: []RepoSignal{
			{Name: "u/a", Language: "Elixir", Stars: 1, AuthoredCommits: 2, PushedAt: old, Fork: true},
			{Name: "u/b", Language: "Elixir", Stars: 1, AuthoredCommits: 3, PushedAt: old, Fork: true},
		},
	}
	eng := NewEngine(src, Config{}, nil)

	skills, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	byName := indexBySkill(skills)
	elixir := byName["elixir"]
	if elixir.ConfidenceScore < DefaultConfig().MultiRepoFloor {
		t.Fatalf("expected floor %d for two starred repos, got %d", DefaultConfig().MultiRepoFloor, elixir.ConfidenceScore)
	}
}

func TestNoEvidenceProducesNoRecord(t *testing.T) {
	t.Parallel()

	src := &stubSource{}
	eng := NewEngine(src, Config{}, nil)

	skills, err := eng.Recompute(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if len(skills) != 0 {
		t.Fatalf("expected no skill records without evidence, got %+v", skills)
	}
}

func indexBySkill(skills []model.SkillEvidence) map[string]model.SkillEvidence {
	m := make(map[string]model.SkillEvidence, len(skills))
	for _, s := range skills {
		m[s.Skill] = s
	}
	return m
}

// --- stubs ---

type stubSource struct {
	repos    []RepoSignal
	linkedin []string
	repoErr  error
	liErr    error
}

func (s *stubSource) RepoSignals(ctx context.Context, userID string) ([]RepoSignal, error) {
	return s.repos, s.repoErr
}

func (s *stubSource) LinkedInSkills(ctx context.Context, userID string) ([]string, error) {
	return s.linkedin, s.liErr
}
