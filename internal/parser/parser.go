package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"skillradar/internal/model"

	"github.com/sirupsen/logrus"
)

// Config 描述简历解析配置。
type Config struct {
	SkillVocabulary []string       `yaml:"skill_vocabulary" json:"skill_vocabulary"`
	PromptTemplate  string         `yaml:"prompt_template" json:"prompt_template"`
	Deepseek        DeepseekConfig `yaml:"deepseek" json:"deepseek"`
}

// LLMClient 抽象大模型调用，便于测试注入。
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Fields 是从简历文本中提取出的结构化字段。
type Fields struct {
	Name            string
	Email           string
	Phone           string
	Skills          []string
	WorkHistory     []model.WorkEntry
	Education       []model.EducationEntry
	YearsExperience float64
}

// Parser 组合 LLM 提取与规则提取：LLM 可用时优先，失败则回退规则。
type Parser struct {
	cfg    Config
	llm    LLMClient
	vocab  map[string]string
	logger *logrus.Logger
}

// New 创建解析器。llm 传 nil 时只做规则提取。
func New(cfg Config, llm LLMClient, logger *logrus.Logger) *Parser {
	if logger == nil {
		logger = logrus.New()
	}
	vocabulary := cfg.SkillVocabulary
	if len(vocabulary) == 0 {
		vocabulary = defaultVocabulary
	}
	vocab := make(map[string]string, len(vocabulary))
	for _, skill := range vocabulary {
		if trimmed := strings.TrimSpace(skill); trimmed != "" {
			vocab[strings.ToLower(trimmed)] = trimmed
		}
	}
	return &Parser{cfg: cfg, llm: llm, vocab: vocab, logger: logger}
}

// Parse 提取简历字段。原始文本为空时报错。
func (p *Parser) Parse(ctx context.Context, rawText string) (Fields, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Fields{}, fmt.Errorf("empty resume text")
	}

	if p.llm != nil {
		fields, err := p.parseWithLLM(ctx, text)
		if err == nil {
			return fields, nil
		}
		// LLM 失败降级为规则提取，不让解析整体失败。
		p.logger.WithError(err).Warn("llm resume parse failed, falling back to rules")
	}

	return p.parseWithRules(text), nil
}

func (p *Parser) parseWithLLM(ctx context.Context, text string) (Fields, error) {
	respText, err := p.llm.Complete(ctx, p.buildPrompt(text))
	if err != nil {
		return Fields{}, fmt.Errorf("llm complete: %w", err)
	}

	var payload llmResume
	if err := json.Unmarshal([]byte(stripCodeFence(respText)), &payload); err != nil {
		return Fields{}, fmt.Errorf("parse llm response: %w", err)
	}

	fields := Fields{
		Name:            strings.TrimSpace(payload.Name),
		Email:           strings.TrimSpace(payload.Email),
		Phone:           strings.TrimSpace(payload.Phone),
		YearsExperience: clampYears(payload.YearsExperience),
	}
	for _, s := range payload.Skills {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			fields.Skills = append(fields.Skills, trimmed)
		}
	}
	for _, w := range payload.WorkHistory {
		if w.Company == "" && w.Role == "" {
			continue
		}
		fields.WorkHistory = append(fields.WorkHistory, model.WorkEntry(w))
	}
	for _, e := range payload.Education {
		if e.Institution == "" && e.Degree == "" {
			continue
		}
		fields.Education = append(fields.Education, model.EducationEntry(e))
	}
	return fields, nil
}

func (p *Parser) buildPrompt(text string) string {
	template := strings.TrimSpace(p.cfg.PromptTemplate)
	if template == "" {
		template = defaultPrompt
	}
	prompt := strings.ReplaceAll(template, "{{TEXT}}", text)

	instructions := `
请严格输出 JSON，对象字段:{"name":string,"email":string,"phone":string,"skills":string数组,"work_history":[{"company":string,"role":string,"duration":string}],"education":[{"institution":string,"degree":string,"field":string}],"years_experience":number}.`
	return prompt + instructions
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
	yearsRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\+?\s*(?:years?|年)`)
)

// parseWithRules 基于正则与技能词表做保守提取，提不到的字段留空。
func (p *Parser) parseWithRules(text string) Fields {
	fields := Fields{
		Email: emailRe.FindString(text),
		Phone: strings.TrimSpace(phoneRe.FindString(text)),
		Name:  guessName(text),
	}

	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	for key, canonical := range p.vocab {
		if _, dup := seen[key]; dup {
			continue
		}
		if containsWord(lower, key) {
			seen[key] = struct{}{}
			fields.Skills = append(fields.Skills, canonical)
		}
	}

	if m := yearsRe.FindStringSubmatch(text); m != nil {
		if years, err := strconv.ParseFloat(m[1], 64); err == nil {
			fields.YearsExperience = clampYears(years)
		}
	}
	return fields
}

// guessName 取首个像人名的行：短、无数字、无邮箱符号。
func guessName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.ContainsAny(line, "@0123456789") {
			return ""
		}
		if len(strings.Fields(line)) > 4 {
			return ""
		}
		return line
	}
	return ""
}

// containsWord 检查词表项是否以独立词出现，避免 go 命中 google 之类的误报。
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordRune(rune(text[start-1]))
		afterOK := end == len(text) || !isWordRune(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func clampYears(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 60 {
		return 60
	}
	return v
}

// stripCodeFence 去掉 LLM 偶尔包裹的 markdown 代码块。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

const defaultPrompt = `请作为资深招聘助手，阅读以下简历文本并提取结构化字段：
{{TEXT}}
技能名称保留原文写法，工作年限按数字输出。`

var defaultVocabulary = []string{
	"Go", "Python", "Java", "JavaScript", "TypeScript", "C++", "C#", "Rust",
	"React", "Vue", "Angular", "Node.js", "Django", "Spring",
	"PostgreSQL", "MySQL", "SQLite", "MongoDB", "Redis",
	"Docker", "Kubernetes", "Terraform", "AWS", "GCP", "Azure",
	"Kafka", "RabbitMQ", "gRPC", "GraphQL", "Linux", "Git",
}

// llmResume 对应 LLM JSON 响应。
type llmResume struct {
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Skills          []string   `json:"skills"`
	WorkHistory     []workItem `json:"work_history"`
	Education       []eduItem  `json:"education"`
	YearsExperience float64    `json:"years_experience"`
}

type workItem struct {
	Company  string `json:"company"`
	Role     string `json:"role"`
	Duration string `json:"duration"`
}

type eduItem struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
}
