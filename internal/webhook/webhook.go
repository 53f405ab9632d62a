package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Event 是从 GitHub 事件体里取出的最小字段集。
type Event struct {
	Ref        string `json:"ref"`
	Action     string `json:"action"`
	Repository struct {
		FullName      string `json:"full_name"`
		DefaultBranch string `json:"default_branch"`
		Private       bool   `json:"private"`
		Fork          bool   `json:"fork"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// Config 控制哪些事件算"有意义的变化"。
type Config struct {
	// MeaningfulRepositoryActions 列出触发重算的 repository 事件动作。
	MeaningfulRepositoryActions []string `yaml:"meaningful_repository_actions" json:"meaningful_repository_actions"`
}

// DefaultConfig 返回默认过滤策略。
func DefaultConfig() Config {
	return Config{
		MeaningfulRepositoryActions: []string{"created", "publicized", "unarchived"},
	}
}

// VerifySignature 用注册密钥对原始请求体做 HMAC-SHA256 校验。
// 必须在未解析的原始字节上计算；比较使用恒定时间实现，避免时序侧信道。
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}
	sig := strings.TrimPrefix(signatureHeader, "sha256=")
	if sig == signatureHeader || sig == "" {
		return false
	}
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Filter 判断事件是否值得触发重算。
type Filter struct {
	repositoryActions map[string]struct{}
}

// NewFilter 创建事件过滤器。
func NewFilter(cfg Config) *Filter {
	actions := cfg.MeaningfulRepositoryActions
	if len(actions) == 0 {
		actions = DefaultConfig().MeaningfulRepositoryActions
	}
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if trimmed := strings.ToLower(strings.TrimSpace(a)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return &Filter{repositoryActions: set}
}

// IsMeaningfulChange 过滤噪音事件：只有默认分支的推送和
// 仓库的创建/可见性变化才值得重新评估，star、watch、
// 非默认分支推送一律忽略。
func (f *Filter) IsMeaningfulChange(eventType string, ev Event) bool {
	switch eventType {
	case "push":
		branch := ev.Repository.DefaultBranch
		if branch == "" {
			branch = "main"
		}
		return ev.Ref == "refs/heads/"+branch
	case "repository":
		_, ok := f.repositoryActions[strings.ToLower(ev.Action)]
		return ok
	default:
		return false
	}
}
