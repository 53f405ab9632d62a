package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Profile 是从 LinkedIn 公开页面提取的事实。
type Profile struct {
	Headline string
	Skills   []string
}

// LinkedInFetcher 抓取 LinkedIn 公开资料页。只读取页面上可见的自述内容，
// 不做登录态抓取。
type LinkedInFetcher struct {
	client *http.Client
}

// NewLinkedInFetcher 创建公开资料抓取器。
func NewLinkedInFetcher(client *http.Client) *LinkedInFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &LinkedInFetcher{client: client}
}

// FetchProfile 拉取并解析公开资料页。
func (l *LinkedInFetcher) FetchProfile(ctx context.Context, profileURL string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return parseProfile(string(body))
}

func parseProfile(htmlText string) (*Profile, error) {
	node, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	profile := &Profile{}
	seen := make(map[string]struct{})

	var search func(*html.Node)
	search = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := attrValue(n, "class")
			switch {
			case profile.Headline == "" && strings.Contains(class, "top-card-layout__headline"):
				profile.Headline = strings.TrimSpace(textContent(n))
			case strings.Contains(class, "skills__item") || strings.Contains(class, "skill-name"):
				skill := strings.TrimSpace(textContent(n))
				if skill != "" {
					key := strings.ToLower(skill)
					if _, dup := seen[key]; !dup {
						seen[key] = struct{}{}
						profile.Skills = append(profile.Skills, skill)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			search(c)
		}
	}
	search(node)

	if profile.Headline == "" && len(profile.Skills) == 0 {
		return nil, fmt.Errorf("no profile content found")
	}
	return profile, nil
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
