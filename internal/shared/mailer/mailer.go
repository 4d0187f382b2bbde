// Package mailer 事务性邮件发送
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Message 一封待发送的邮件
//
// Text 为纯文本正文；HTML 非空时以 multipart/alternative 同时携带两种正文。
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Config SMTP 配置
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// smtpMailer 基于 SMTP 的实现
type smtpMailer struct {
	cfg Config
}

// NewSMTP 创建 SMTP 邮件发送器
func NewSMTP(cfg Config) Mailer {
	return &smtpMailer{cfg: cfg}
}

// altBoundary multipart/alternative 分隔符
const altBoundary = "touropedia-alt"

// buildMessage 构造 MIME 报文：纯文本，或文本 + HTML 的 multipart/alternative
func buildMessage(from string, msg *Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.Text)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n", altBoundary)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", altBoundary)
	return []byte(b.String())
}

func (m *smtpMailer) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, msg.To, buildMessage(m.cfg.From, msg))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mock 测试用邮件发送器，记录所有发出的邮件
type Mock struct {
	Sent []*Message
	Err  error
}

// NewMock 创建测试邮件发送器
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Send(_ context.Context, msg *Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

var (
	_ Mailer = (*smtpMailer)(nil)
	_ Mailer = (*Mock)(nil)
)
