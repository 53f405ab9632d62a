package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"skillradar/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Config 定义 GitHub 抓取配置。
type Config struct {
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	PerPage  int `yaml:"per_page" json:"per_page"`
}

// GitHubClient 抓取用户公开仓库与提交统计。
type GitHubClient struct {
	baseURL string
	token   string
	client  *http.Client
	cfg     Config
	logger  *logrus.Logger
}

// NewGitHubClient 创建 GitHub 客户端，baseURL 形如 https://api.github.com。
// token 为空时走匿名额度。
func NewGitHubClient(baseURL, token string, cfg Config, client *http.Client, logger *logrus.Logger) *GitHubClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = 100
	}
	return &GitHubClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  client,
		cfg:     cfg,
		logger:  logger,
	}
}

type githubRepo struct {
	Name      string   `json:"name"`
	FullName  string   `json:"full_name"`
	Language  string   `json:"language"`
	Topics    []string `json:"topics"`
	Stars     int      `json:"stargazers_count"`
	Fork      bool     `json:"fork"`
	Homepage  string   `json:"homepage"`
	PushedAt  string   `json:"pushed_at"`
	OwnerInfo struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// FetchRepos 拉取某用户的公开仓库清单，逐仓库补齐本人提交数与 README 标记。
func (g *GitHubClient) FetchRepos(ctx context.Context, username string) ([]model.RepoEvidence, error) {
	var repos []githubRepo
	for page := 1; page <= g.cfg.MaxPages; page++ {
		url := fmt.Sprintf("%s/users/%s/repos?per_page=%d&page=%d&sort=pushed", g.baseURL, username, g.cfg.PerPage, page)
		var batch []githubRepo
		if err := g.getJSON(ctx, url, &batch); err != nil {
			return nil, fmt.Errorf("list repos page %d: %w", page, err)
		}
		repos = append(repos, batch...)
		if len(batch) < g.cfg.PerPage {
			break
		}
	}

	g.logger.WithFields(logrus.Fields{"user": username, "repos": len(repos)}).Debug("github repos listed")

	out := make([]model.RepoEvidence, 0, len(repos))
	for _, r := range repos {
		owner := r.OwnerInfo.Login
		if owner == "" {
			owner = username
		}
		commits, err := g.authoredCommitCount(ctx, owner, r.Name, username)
		if err != nil {
			// 单仓库失败不拖垮整次抓取，按零提交记录。
			g.logger.WithError(err).WithField("repo", r.FullName).Warn("count authored commits")
			commits = 0
		}
		hasReadme, err := g.hasReadme(ctx, owner, r.Name)
		if err != nil {
			g.logger.WithError(err).WithField("repo", r.FullName).Warn("probe readme")
		}

		pushedAt, _ := time.Parse(time.RFC3339, r.PushedAt)
		out = append(out, model.RepoEvidence{
			RepoName:        r.Name,
			Language:        r.Language,
			Topics:          datatypes.JSONSlice[string](r.Topics),
			Stars:           r.Stars,
			AuthoredCommits: commits,
			Fork:            r.Fork,
			HasReadme:       hasReadme,
			LiveDemoURL:     r.Homepage,
			PushedAt:        pushedAt,
		})
	}
	return out, nil
}

var lastPageRe = regexp.MustCompile(`[?&]page=(\d+)>; rel="last"`)

// authoredCommitCount 统计仓库内该用户本人的提交数。
// 借助 per_page=1 时 Link 头的 last 页码拿到总数，避免翻页。
func (g *GitHubClient) authoredCommitCount(ctx context.Context, owner, repo, author string) (int, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits?author=%s&per_page=1", g.baseURL, owner, repo, author)
	resp, err := g.do(ctx, http.MethodGet, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict: // 空仓库
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if m := lastPageRe.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("parse last page: %w", err)
		}
		return n, nil
	}

	var commits []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return 0, fmt.Errorf("decode commits: %w", err)
	}
	return len(commits), nil
}

func (g *GitHubClient) hasReadme(ctx context.Context, owner, repo string) (bool, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/readme", g.baseURL, owner, repo)
	resp, err := g.do(ctx, http.MethodGet, url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (g *GitHubClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := g.do(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (g *GitHubClient) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", method, err)
	}
	return resp, nil
}
