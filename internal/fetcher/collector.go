package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillradar/internal/confidence"
	"skillradar/internal/model"
	"skillradar/internal/storage"

	"gorm.io/datatypes"
)

// Store 是采集器依赖的存储能力。
type Store interface {
	GetUserAccount(ctx context.Context, userID string) (*model.UserAccount, error)
	UpsertRepoEvidence(ctx context.Context, userID string, repos []model.RepoEvidence) (storage.RepoUpsertResult, error)
	ListRepoEvidence(ctx context.Context, userID string) ([]model.RepoEvidence, error)
	GetLinkedInProfile(ctx context.Context, userID string) (*model.LinkedInProfile, error)
	UpsertLinkedInProfile(ctx context.Context, p *model.LinkedInProfile) error
}

// RepoSource 抽象 GitHub 仓库抓取，便于测试替换。
type RepoSource interface {
	FetchRepos(ctx context.Context, username string) ([]model.RepoEvidence, error)
}

// ProfileSource 抽象 LinkedIn 资料抓取。
type ProfileSource interface {
	FetchProfile(ctx context.Context, profileURL string) (*Profile, error)
}

// Collector 把外部源的抓取结果落入证据存储，并报告是否产生了变化。
type Collector struct {
	store    Store
	github   RepoSource
	linkedin ProfileSource
	now      func() time.Time
}

// NewCollector 创建采集器。
func NewCollector(store Store, github RepoSource, linkedin ProfileSource) *Collector {
	return &Collector{store: store, github: github, linkedin: linkedin, now: time.Now}
}

// CollectGitHub 抓取用户仓库证据并写入存储，返回本次是否有新增或变更。
func (c *Collector) CollectGitHub(ctx context.Context, userID string) (bool, error) {
	acct, err := c.store.GetUserAccount(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load user account: %w", err)
	}
	if acct.GitHubUsername == "" {
		return false, fmt.Errorf("user %s has no github account linked", userID)
	}

	repos, err := c.github.FetchRepos(ctx, acct.GitHubUsername)
	if err != nil {
		return false, fmt.Errorf("fetch github repos: %w", err)
	}

	result, err := c.store.UpsertRepoEvidence(ctx, userID, repos)
	if err != nil {
		return false, fmt.Errorf("store repo evidence: %w", err)
	}
	return result.Created > 0 || result.Changed, nil
}

// CollectLinkedIn 抓取公开资料并覆盖写入，返回资料是否发生变化。
func (c *Collector) CollectLinkedIn(ctx context.Context, userID string) (bool, error) {
	acct, err := c.store.GetUserAccount(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load user account: %w", err)
	}
	if acct.LinkedInURL == "" {
		return false, fmt.Errorf("user %s has no linkedin url linked", userID)
	}

	profile, err := c.linkedin.FetchProfile(ctx, acct.LinkedInURL)
	if err != nil {
		return false, fmt.Errorf("fetch linkedin profile: %w", err)
	}

	changed := true
	existing, err := c.store.GetLinkedInProfile(ctx, userID)
	switch {
	case err == nil:
		changed = existing.Headline != profile.Headline || !sameSkills(existing.Skills, profile.Skills)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return false, fmt.Errorf("load linkedin profile: %w", err)
	}

	record := &model.LinkedInProfile{
		UserID:    userID,
		Headline:  profile.Headline,
		Skills:    datatypes.JSONSlice[string](profile.Skills),
		FetchedAt: c.now(),
	}
	if err := c.store.UpsertLinkedInProfile(ctx, record); err != nil {
		return false, fmt.Errorf("store linkedin profile: %w", err)
	}
	return changed, nil
}

func sameSkills(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// StoreSource 把证据存储适配成置信度引擎的读取来源。
type StoreSource struct {
	store Store
}

// NewStoreSource 创建基于存储的证据来源。
func NewStoreSource(store Store) *StoreSource {
	return &StoreSource{store: store}
}

// RepoSignals 读取某用户的全部仓库证据。
func (s *StoreSource) RepoSignals(ctx context.Context, userID string) ([]confidence.RepoSignal, error) {
	repos, err := s.store.ListRepoEvidence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list repo evidence: %w", err)
	}
	signals := make([]confidence.RepoSignal, 0, len(repos))
	for _, r := range repos {
		signals = append(signals, confidence.RepoSignal{
			Name:            r.RepoName,
			Language:        r.Language,
			Topics:          r.Topics,
			Stars:           r.Stars,
			AuthoredCommits: r.AuthoredCommits,
			Fork:            r.Fork,
			HasReadme:       r.HasReadme,
			LiveDemoURL:     r.LiveDemoURL,
			PushedAt:        r.PushedAt,
		})
	}
	return signals, nil
}

// LinkedInSkills 读取某用户自述技能，资料不存在时视为空。
func (s *StoreSource) LinkedInSkills(ctx context.Context, userID string) ([]string, error) {
	profile, err := s.store.GetLinkedInProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load linkedin profile: %w", err)
	}
	return profile.Skills, nil
}
