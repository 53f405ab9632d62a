package ats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"skillradar/internal/model"
)

// Config 是打分权重与经验档位策略，五项权重之和必须为 1。
type Config struct {
	SkillWeight      float64 `yaml:"skill_weight" json:"skill_weight"`
	ExperienceWeight float64 `yaml:"experience_weight" json:"experience_weight"`
	EducationWeight  float64 `yaml:"education_weight" json:"education_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight" json:"keyword_weight"`
	SemanticWeight   float64 `yaml:"semantic_weight" json:"semantic_weight"`

	EntryYears  float64 `yaml:"entry_years" json:"entry_years"`
	MidYears    float64 `yaml:"mid_years" json:"mid_years"`
	SeniorYears float64 `yaml:"senior_years" json:"senior_years"`

	// Synonyms 把别名映射到规范技能名，补充在默认表之上。
	Synonyms map[string]string `yaml:"synonyms" json:"synonyms"`
}

// DefaultConfig 返回默认权重。
func DefaultConfig() Config {
	return Config{
		SkillWeight:      0.35,
		ExperienceWeight: 0.20,
		EducationWeight:  0.10,
		KeywordWeight:    0.15,
		SemanticWeight:   0.20,
		EntryYears:       0,
		MidYears:         2,
		SeniorYears:      5,
	}
}

// Breakdown 是加权前的五个子分，均在 [0,1]。
type Breakdown struct {
	SkillMatch         float64 `json:"skill_match"`
	ExperienceMatch    float64 `json:"experience_match"`
	EducationMatch     float64 `json:"education_match"`
	KeywordDensity     float64 `json:"keyword_density"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
}

// Result 是一次打分的完整输出。
type Result struct {
	Score         int
	Breakdown     Breakdown
	CommonSkills  []string
	MissingSkills []string
}

// Engine 按多维加权比较简历与岗位。纯计算，不做持久化。
type Engine struct {
	cfg      Config
	synonyms map[string]string
}

// defaultSynonyms 是常见技术名的别名表。
var defaultSynonyms = map[string]string{
	"js":       "javascript",
	"ts":       "typescript",
	"golang":   "go",
	"node":     "node.js",
	"nodejs":   "node.js",
	"reactjs":  "react",
	"react.js": "react",
	"postgres": "postgresql",
	"k8s":      "kubernetes",
	"py":       "python",
	"dotnet":   ".net",
	"tf":       "terraform",
}

// NewEngine 创建 Engine，校验权重之和为 1。
func NewEngine(cfg Config) (*Engine, error) {
	def := DefaultConfig()
	if cfg.SkillWeight == 0 && cfg.ExperienceWeight == 0 && cfg.EducationWeight == 0 && cfg.KeywordWeight == 0 && cfg.SemanticWeight == 0 {
		cfg.SkillWeight = def.SkillWeight
		cfg.ExperienceWeight = def.ExperienceWeight
		cfg.EducationWeight = def.EducationWeight
		cfg.KeywordWeight = def.KeywordWeight
		cfg.SemanticWeight = def.SemanticWeight
	}
	sum := cfg.SkillWeight + cfg.ExperienceWeight + cfg.EducationWeight + cfg.KeywordWeight + cfg.SemanticWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("ats weights must sum to 1.0, got %.4f", sum)
	}
	if cfg.MidYears <= 0 {
		cfg.MidYears = def.MidYears
	}
	if cfg.SeniorYears <= 0 {
		cfg.SeniorYears = def.SeniorYears
	}

	synonyms := make(map[string]string, len(defaultSynonyms)+len(cfg.Synonyms))
	for alias, canonical := range defaultSynonyms {
		synonyms[alias] = canonical
	}
	for alias, canonical := range cfg.Synonyms {
		synonyms[strings.ToLower(strings.TrimSpace(alias))] = strings.ToLower(strings.TrimSpace(canonical))
	}

	return &Engine{cfg: cfg, synonyms: synonyms}, nil
}

// Score 计算简历对岗位的匹配分。
// 缺失的结构化字段让受影响的子分退化为 0，而不是中止整体计算。
func (e *Engine) Score(resume *model.ResumeEvidence, rawText string, job *model.JobPosting) Result {
	var resumeSkills []string
	var years float64
	hasEducation := false
	if resume != nil {
		resumeSkills = resume.Skills
		years = resume.YearsExperience
		for _, edu := range resume.Education {
			if edu.Degree != "" || edu.Institution != "" {
				hasEducation = true
				break
			}
		}
	}

	skillMatch, common, missing := e.skillMatch(resumeSkills, job)

	b := Breakdown{
		SkillMatch:         skillMatch,
		ExperienceMatch:    e.experienceMatch(years, job.ExperienceLevel),
		EducationMatch:     e.educationMatch(hasEducation, job.RequiresDegree),
		KeywordDensity:     keywordDensity(job.Description, rawText),
		SemanticSimilarity: cosineSimilarity(rawText, job.Description),
	}

	weighted := e.cfg.SkillWeight*b.SkillMatch +
		e.cfg.ExperienceWeight*b.ExperienceMatch +
		e.cfg.EducationWeight*b.EducationMatch +
		e.cfg.KeywordWeight*b.KeywordDensity +
		e.cfg.SemanticWeight*b.SemanticSimilarity

	score := int(math.Round(weighted * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{Score: score, Breakdown: b, CommonSkills: common, MissingSkills: missing}
}

// skillMatch 对技能列表做同义词归一后求交集比例，分母是必需技能数。
func (e *Engine) skillMatch(resumeSkills []string, job *model.JobPosting) (float64, []string, []string) {
	have := make(map[string]struct{}, len(resumeSkills))
	for _, s := range resumeSkills {
		if key := e.canon(s); key != "" {
			have[key] = struct{}{}
		}
	}

	wanted := make(map[string]struct{}, len(job.RequiredSkills)+len(job.NiceToHaveSkills))
	for _, s := range append(append([]string{}, job.RequiredSkills...), job.NiceToHaveSkills...) {
		if key := e.canon(s); key != "" {
			wanted[key] = struct{}{}
		}
	}

	common := make([]string, 0)
	for key := range wanted {
		if _, ok := have[key]; ok {
			common = append(common, key)
		}
	}
	sort.Strings(common)

	missing := make([]string, 0)
	for _, s := range job.RequiredSkills {
		if _, ok := have[e.canon(s)]; !ok {
			missing = append(missing, s)
		}
	}

	// 没有必需技能的岗位视为完全匹配，避免除零。
	if len(job.RequiredSkills) == 0 {
		return 1.0, common, missing
	}

	ratio := float64(len(common)) / float64(len(job.RequiredSkills))
	if ratio > 1 {
		ratio = 1
	}
	return ratio, common, missing
}

// experienceMatch 在达到档位年限后饱和为 1，不足时线性缩放。
func (e *Engine) experienceMatch(years float64, level model.ExperienceLevel) float64 {
	var min float64
	switch level {
	case model.ExperienceEntry:
		min = e.cfg.EntryYears
	case model.ExperienceMid:
		min = e.cfg.MidYears
	case model.ExperienceSenior:
		min = e.cfg.SeniorYears
	default:
		return 0
	}
	if min <= 0 || years >= min {
		return 1
	}
	if years <= 0 {
		return 0
	}
	return years / min
}

// educationMatch 是二元判定：岗位有学历门槛时看是否有任一教育经历。
func (e *Engine) educationMatch(hasEducation, required bool) float64 {
	if !required {
		return 1
	}
	if hasEducation {
		return 1
	}
	return 0
}

func (e *Engine) canon(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := e.synonyms[key]; ok {
		return canonical
	}
	return key
}
