package ats

import (
	"math"
	"strings"
	"unicode"
)

// stopWords 过滤对关键词匹配没有信息量的常见英文词。
var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "high": true,
	"good": true, "able": true, "get": true, "set": true, "such": true,
	"looking": true, "candidate": true, "experience": true, "years": true,
}

// tokenize 把文本切成小写关键词，跳过停用词。
// + # . 视为词字符，保留 c++、c#、node.js 这类技术名。
func tokenize(text string) map[string]int {
	counts := make(map[string]int)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if w == "" || stopWords[w] {
			return
		}
		if len([]rune(w)) >= 3 || strings.ContainsAny(w, "+#") {
			counts[w]++
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return counts
}

// keywordDensity 返回岗位描述关键词在简历原文中逐字出现的比例。
func keywordDensity(jobDescription, resumeText string) float64 {
	jobTokens := tokenize(jobDescription)
	if len(jobTokens) == 0 {
		return 0
	}
	resumeTokens := tokenize(resumeText)

	found := 0
	for token := range jobTokens {
		if resumeTokens[token] > 0 {
			found++
		}
	}
	return float64(found) / float64(len(jobTokens))
}

// cosineSimilarity 对两段文本做词袋余弦相似度。
// 这是刻意粗糙的词面重合近似，不是真正的语义向量相似度。
func cosineSimilarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for token, ca := range ta {
		normA += float64(ca * ca)
		if cb, ok := tb[token]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range tb {
		normB += float64(cb * cb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
