package model

import (
	"time"

	"gorm.io/datatypes"
)

// WorkEntry 表示一段工作经历。
type WorkEntry struct {
	Company  string `json:"company"`
	Role     string `json:"role"`
	Duration string `json:"duration"`
}

// EducationEntry 表示一条教育经历。
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
}

// ResumeEvidence 保存一次简历上传的解析结果。
// 记录不可变：新的上传会产生新记录，匹配时以最近一次为准。
type ResumeEvidence struct {
	ID              string                              `gorm:"primaryKey" json:"id"`
	UserID          string                              `gorm:"index" json:"user_id"`
	RawText         string                              `gorm:"type:text" json:"raw_text"`
	Name            string                              `json:"name"`
	Email           string                              `json:"email"`
	Phone           string                              `json:"phone"`
	Skills          datatypes.JSONSlice[string]         `json:"skills"`
	WorkHistory     datatypes.JSONSlice[WorkEntry]      `json:"work_history"`
	Education       datatypes.JSONSlice[EducationEntry] `json:"education"`
	YearsExperience float64                             `json:"years_experience"`
	UploadedAt      time.Time                           `gorm:"index" json:"uploaded_at"`
	CreatedAt       time.Time                           `json:"created_at"`
}

// RepoEvidence 保存单个 GitHub 仓库的证据摘要，按 (user_id, repo_name) 去重。
// AuthoredCommits 只统计用户本人提交，排除同仓库的第三方提交。
type RepoEvidence struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	UserID          string                      `gorm:"uniqueIndex:uniq_user_repo,priority:1" json:"user_id"`
	RepoName        string                      `gorm:"uniqueIndex:uniq_user_repo,priority:2" json:"repo_name"`
	Language        string                      `json:"language"`
	Topics          datatypes.JSONSlice[string] `json:"topics"`
	Stars           int                         `json:"stars"`
	AuthoredCommits int                         `json:"authored_commits"`
	Fork            bool                        `json:"fork"`
	HasReadme       bool                        `json:"has_readme"`
	LiveDemoURL     string                      `json:"live_demo_url"`
	PushedAt        time.Time                   `json:"pushed_at"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// LinkedInProfile 保存 LinkedIn 公开资料的事实，每个用户一行，抓取后覆盖。
type LinkedInProfile struct {
	UserID    string                      `gorm:"primaryKey" json:"user_id"`
	Headline  string                      `json:"headline"`
	Skills    datatypes.JSONSlice[string] `json:"skills"`
	FetchedAt time.Time                   `json:"fetched_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// UserAccount 记录用户绑定的外部账号句柄，供抓取器定位数据源。
type UserAccount struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	GitHubUsername string    `gorm:"column:github_username" json:"github_username"`
	LinkedInURL    string    `gorm:"column:linkedin_url" json:"linkedin_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
