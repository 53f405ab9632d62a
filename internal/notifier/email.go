package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailConfig 邮件配置。
type EmailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"password"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
	Subject  string   `yaml:"subject" json:"subject"`
}

// EmailMessage 表示一封邮件。
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// EmailSender 抽象发送接口，便于测试替换。
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPClient 封装 SMTP 发送。
type SMTPClient struct {
	addr string
	auth smtp.Auth
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: addr, auth: auth}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	data := buildEmailData(msg)
	return smtp.SendMail(c.addr, c.auth, msg.From, msg.To, []byte(data))
}

// EmailEmitter 把事件以邮件发出。
type EmailEmitter struct {
	cfg    EmailConfig
	sender EmailSender
}

// NewEmailEmitter 创建 EmailEmitter。
func NewEmailEmitter(cfg EmailConfig, sender EmailSender) *EmailEmitter {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.Subject == "" {
		cfg.Subject = "Skill profile update"
	}
	return &EmailEmitter{cfg: cfg, sender: sender}
}

// Emit 发送事件邮件。
func (e *EmailEmitter) Emit(ctx context.Context, ev Event) error {
	msg := EmailMessage{
		From:    e.cfg.From,
		To:      e.cfg.To,
		Subject: e.cfg.Subject,
		Body:    EventBody(ev),
	}
	return e.sender.Send(ctx, msg)
}

// EventBody 渲染事件的通知正文。
func EventBody(ev Event) string {
	var b strings.Builder
	switch ev.Type {
	case EventProfileRefreshed:
		b.WriteString(fmt.Sprintf("Profile refreshed for user %s (%s job %s).\n", ev.UserID, ev.Kind, ev.JobID))
		if ev.ChangesFound {
			b.WriteString("New evidence was found and skill confidence was recomputed.\n")
		}
	case EventScrapeFailed:
		b.WriteString(fmt.Sprintf("Background refresh failed for user %s (%s job %s).\n", ev.UserID, ev.Kind, ev.JobID))
	}
	if ev.Message != "" {
		b.WriteString(ev.Message)
		b.WriteString("\n")
	}
	return b.String()
}

func buildEmailData(msg EmailMessage) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ",")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
