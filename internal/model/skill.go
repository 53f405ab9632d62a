package model

import "time"

// SkillSource 表示技能证据来源。
type SkillSource string

const (
	SkillSourceGitHub   SkillSource = "github"
	SkillSourceLinkedIn SkillSource = "linkedin"
	SkillSourceBoth     SkillSource = "both"
)

// StrongestRepo 描述某技能最有说服力的仓库。
type StrongestRepo struct {
	Name        string `json:"name"`
	Stars       int    `json:"stars"`
	Commits     int    `json:"commits"`
	HasReadme   bool   `json:"has_readme"`
	HasLiveDemo bool   `json:"has_live_demo"`
}

// SkillEvidence 是按 (user_id, skill) 唯一的技能置信度记录。
// 只由置信度引擎在重算时更新，不会被删除，只会被后续重算覆盖。
type SkillEvidence struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	UserID               string      `gorm:"uniqueIndex:uniq_user_skill,priority:1" json:"user_id"`
	Skill                string      `gorm:"uniqueIndex:uniq_user_skill,priority:2" json:"skill"`
	Source               SkillSource `json:"source"`
	RepoCount            int         `json:"repo_count"`
	TotalCommits         int         `json:"total_commits"`
	StarsOnSkillRepos    int         `json:"stars_on_skill_repos"`
	HasProductionProject bool        `json:"has_production_project"`
	LanguagePercentage   float64     `json:"language_percentage"`
	LastUsedPeriod       string      `json:"last_used_period"`
	StrongestRepoName    string      `json:"strongest_repo_name"`
	StrongestRepoStars   int         `json:"strongest_repo_stars"`
	StrongestRepoCommits int         `json:"strongest_repo_commits"`
	StrongestRepoReadme  bool        `json:"strongest_repo_readme"`
	StrongestRepoDemo    bool        `json:"strongest_repo_demo"`
	ConfidenceScore      int         `json:"confidence_score"`
	Verified             bool        `json:"verified"`
	DisplayLabel         string      `json:"display_label"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Strongest 以结构形式返回最强仓库，未记录时返回 nil。
func (s SkillEvidence) Strongest() *StrongestRepo {
	if s.StrongestRepoName == "" {
		return nil
	}
	return &StrongestRepo{
		Name:        s.StrongestRepoName,
		Stars:       s.StrongestRepoStars,
		Commits:     s.StrongestRepoCommits,
		HasReadme:   s.StrongestRepoReadme,
		HasLiveDemo: s.StrongestRepoDemo,
	}
}
