package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExperienceLevel 表示岗位要求的经验档位。
type ExperienceLevel string

const (
	ExperienceEntry  ExperienceLevel = "entry"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
)

// JobPosting 表示一个岗位需求，是 ATS 打分的参照对象。
type JobPosting struct {
	ID               string                      `gorm:"primaryKey" json:"id"`
	Title            string                      `json:"title"`
	Description      string                      `gorm:"type:text" json:"description"`
	RequiredSkills   datatypes.JSONSlice[string] `json:"required_skills"`
	NiceToHaveSkills datatypes.JSONSlice[string] `json:"nice_to_have_skills"`
	ExperienceLevel  ExperienceLevel             `json:"experience_level"`
	RequiresDegree   bool                        `json:"requires_degree"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// MatchScore 保存一次简历与岗位的匹配结果，按 (resume_id, job_id) 唯一。
// 不保留历史：重算覆盖旧值。
type MatchScore struct {
	ID                 string                      `gorm:"primaryKey" json:"id"`
	ResumeID           string                      `gorm:"uniqueIndex:uniq_resume_job,priority:1" json:"resume_id"`
	JobID              string                      `gorm:"uniqueIndex:uniq_resume_job,priority:2" json:"job_id"`
	Overall            int                         `json:"overall"`
	SkillMatch         float64                     `json:"skill_match"`
	ExperienceMatch    float64                     `json:"experience_match"`
	EducationMatch     float64                     `json:"education_match"`
	KeywordDensity     float64                     `json:"keyword_density"`
	SemanticSimilarity float64                     `json:"semantic_similarity"`
	CommonSkills       datatypes.JSONSlice[string] `json:"common_skills"`
	MissingSkills      datatypes.JSONSlice[string] `json:"missing_skills"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// Application 表示候选人对某岗位的申请记录，AIScore 由打分接口显式回写。
type Application struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex:uniq_user_job,priority:1" json:"user_id"`
	JobID     string    `gorm:"uniqueIndex:uniq_user_job,priority:2" json:"job_id"`
	AIScore   *int      `json:"ai_score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
