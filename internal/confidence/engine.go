package confidence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"skillradar/internal/model"

	"github.com/sirupsen/logrus"
)

// RepoSignal 是一个仓库为某些技能提供的原始信号。
// AuthoredCommits 只含用户本人提交。
type RepoSignal struct {
	Name            string
	Language        string
	Topics          []string
	Stars           int
	AuthoredCommits int
	Fork            bool
	HasReadme       bool
	LiveDemoURL     string
	PushedAt        time.Time
}

// EvidenceSource 抽象证据读取，便于测试替换。
type EvidenceSource interface {
	RepoSignals(ctx context.Context, userID string) ([]RepoSignal, error)
	LinkedInSkills(ctx context.Context, userID string) ([]string, error)
}

// Config 是置信度计算的策略参数，四项权重之和应为 1。
type Config struct {
	RepoWeight         float64 `yaml:"repo_weight" json:"repo_weight"`
	CommitWeight       float64 `yaml:"commit_weight" json:"commit_weight"`
	StarWeight         float64 `yaml:"star_weight" json:"star_weight"`
	LanguageWeight     float64 `yaml:"language_weight" json:"language_weight"`
	ProductionBonus    int     `yaml:"production_bonus" json:"production_bonus"`
	MultiRepoFloor     int     `yaml:"multi_repo_floor" json:"multi_repo_floor"`
	LinkedInOnlyCap    int     `yaml:"linkedin_only_cap" json:"linkedin_only_cap"`
	VerifyThreshold    int     `yaml:"verify_threshold" json:"verify_threshold"`
	RecentActivityDays int     `yaml:"recent_activity_days" json:"recent_activity_days"`
}

// DefaultConfig 返回默认策略。
func DefaultConfig() Config {
	return Config{
		RepoWeight:         0.3,
		CommitWeight:       0.3,
		StarWeight:         0.2,
		LanguageWeight:     0.2,
		ProductionBonus:    15,
		MultiRepoFloor:     50,
		LinkedInOnlyCap:    25,
		VerifyThreshold:    60,
		RecentActivityDays: 180,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.RepoWeight <= 0 && c.CommitWeight <= 0 && c.StarWeight <= 0 && c.LanguageWeight <= 0 {
		c.RepoWeight = def.RepoWeight
		c.CommitWeight = def.CommitWeight
		c.StarWeight = def.StarWeight
		c.LanguageWeight = def.LanguageWeight
	}
	if c.ProductionBonus <= 0 {
		c.ProductionBonus = def.ProductionBonus
	}
	if c.MultiRepoFloor <= 0 {
		c.MultiRepoFloor = def.MultiRepoFloor
	}
	if c.LinkedInOnlyCap <= 0 {
		c.LinkedInOnlyCap = def.LinkedInOnlyCap
	}
	if c.VerifyThreshold <= 0 {
		c.VerifyThreshold = def.VerifyThreshold
	}
	if c.RecentActivityDays <= 0 {
		c.RecentActivityDays = def.RecentActivityDays
	}
	return c
}

// Engine 把 GitHub 与 LinkedIn 证据融合为技能置信度记录。
type Engine struct {
	source EvidenceSource
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time
}

// NewEngine 创建 Engine。
func NewEngine(source EvidenceSource, cfg Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{source: source, cfg: cfg.normalized(), logger: logger, now: time.Now}
}

// Recompute 重算用户全部技能的置信度，按技能名升序返回。
// GitHub 缺失时降级为仅 LinkedIn 的条目；单个技能的计算失败
// 不影响其余技能。相同证据集下重算结果一致。
func (e *Engine) Recompute(ctx context.Context, userID string) ([]model.SkillEvidence, error) {
	repos, repoErr := e.source.RepoSignals(ctx, userID)
	if repoErr != nil {
		e.logger.WithError(repoErr).WithField("user", userID).Warn("github evidence unavailable, falling back to linkedin only")
		repos = nil
	}

	liSkills, liErr := e.source.LinkedInSkills(ctx, userID)
	if liErr != nil {
		e.logger.WithError(liErr).WithField("user", userID).Warn("linkedin evidence unavailable")
		liSkills = nil
	}

	if repoErr != nil && liErr != nil {
		return nil, fmt.Errorf("recompute skills for %s: no evidence source available", userID)
	}

	bySkill := groupBySkill(repos)

	linkedin := make(map[string]struct{}, len(liSkills))
	for _, s := range liSkills {
		if key := normalizeSkill(s); key != "" {
			linkedin[key] = struct{}{}
		}
	}

	totalCommits := 0
	for _, r := range repos {
		totalCommits += r.AuthoredCommits
	}

	results := make([]model.SkillEvidence, 0, len(bySkill)+len(linkedin))
	for skill, supporting := range bySkill {
		ev, err := e.scoreSkill(userID, skill, supporting, totalCommits, linkedin)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{"user": userID, "skill": skill}).Error("skill scoring failed, skipping")
			continue
		}
		results = append(results, ev)
	}

	for skill := range linkedin {
		if _, ok := bySkill[skill]; ok {
			continue
		}
		results = append(results, e.linkedinOnly(userID, skill))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Skill < results[j].Skill })
	return results, nil
}

// scoreSkill 计算单个 GitHub 技能，panic 被隔离为该技能的错误。
func (e *Engine) scoreSkill(userID, skill string, supporting []RepoSignal, totalCommits int, linkedin map[string]struct{}) (ev model.SkillEvidence, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("score skill %s: %v", skill, r)
		}
	}()

	commits := 0
	stars := 0
	languageCommits := 0
	starredRepos := 0
	production := false
	recentCutoff := e.now().AddDate(0, 0, -e.cfg.RecentActivityDays)
	var lastUsed time.Time
	var strongest RepoSignal

	for _, r := range supporting {
		commits += r.AuthoredCommits
		stars += r.Stars
		if normalizeSkill(r.Language) == skill {
			languageCommits += r.AuthoredCommits
		}
		if r.Stars >= 1 {
			starredRepos++
		}
		if r.LiveDemoURL != "" || (!r.Fork && r.PushedAt.After(recentCutoff)) {
			production = true
		}
		if r.PushedAt.After(lastUsed) {
			lastUsed = r.PushedAt
		}
		if r.Stars > strongest.Stars || (r.Stars == strongest.Stars && r.AuthoredCommits > strongest.AuthoredCommits) {
			strongest = r
		}
	}

	// 话题类技能没有主语言提交量，用支撑仓库的提交量近似。
	if languageCommits == 0 {
		languageCommits = commits
	}
	languagePct := 0.0
	if totalCommits > 0 {
		languagePct = 100 * float64(languageCommits) / float64(totalCommits)
	}

	weighted := e.cfg.RepoWeight*saturate(float64(len(supporting)), 3) +
		e.cfg.CommitWeight*saturate(float64(commits), 50) +
		e.cfg.StarWeight*saturate(float64(stars), 20) +
		e.cfg.LanguageWeight*languagePct/100

	score := int(weighted*100 + 0.5)
	if production {
		score += e.cfg.ProductionBonus
	}
	if starredRepos >= 2 && score < e.cfg.MultiRepoFloor {
		score = e.cfg.MultiRepoFloor
	}
	score = clamp(score)

	source := model.SkillSourceGitHub
	if _, ok := linkedin[skill]; ok {
		source = model.SkillSourceBoth
	}
	verified := score >= e.cfg.VerifyThreshold

	ev = model.SkillEvidence{
		UserID:               userID,
		Skill:                skill,
		Source:               source,
		RepoCount:            len(supporting),
		TotalCommits:         commits,
		StarsOnSkillRepos:    stars,
		HasProductionProject: production,
		LanguagePercentage:   languagePct,
		ConfidenceScore:      score,
		Verified:             verified,
		DisplayLabel:         label(verified, source),
	}
	if !lastUsed.IsZero() {
		ev.LastUsedPeriod = lastUsed.Format("2006-01")
	}
	if strongest.Name != "" {
		ev.StrongestRepoName = strongest.Name
		ev.StrongestRepoStars = strongest.Stars
		ev.StrongestRepoCommits = strongest.AuthoredCommits
		ev.StrongestRepoReadme = strongest.HasReadme
		ev.StrongestRepoDemo = strongest.LiveDemoURL != ""
	}
	return ev, nil
}

// linkedinOnly 生成仅有自述证据的条目，置信度封顶且不可验证。
func (e *Engine) linkedinOnly(userID, skill string) model.SkillEvidence {
	return model.SkillEvidence{
		UserID:          userID,
		Skill:           skill,
		Source:          model.SkillSourceLinkedIn,
		ConfidenceScore: e.cfg.LinkedInOnlyCap,
		Verified:        false,
		DisplayLabel:    label(false, model.SkillSourceLinkedIn),
	}
}

func groupBySkill(repos []RepoSignal) map[string][]RepoSignal {
	bySkill := make(map[string][]RepoSignal)
	for _, r := range repos {
		seen := make(map[string]struct{})
		for _, key := range append([]string{r.Language}, r.Topics...) {
			skill := normalizeSkill(key)
			if skill == "" {
				continue
			}
			if _, dup := seen[skill]; dup {
				continue
			}
			seen[skill] = struct{}{}
			bySkill[skill] = append(bySkill[skill], r)
		}
	}
	return bySkill
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// saturate 把计数映射到 [0,1)，scale 控制半饱和点。
func saturate(v, scale float64) float64 {
	if v <= 0 {
		return 0
	}
	return v / (v + scale)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func label(verified bool, source model.SkillSource) string {
	switch {
	case verified:
		return "GitHub verified"
	case source == model.SkillSourceLinkedIn:
		return "Self-reported"
	default:
		return "Evidence found"
	}
}
