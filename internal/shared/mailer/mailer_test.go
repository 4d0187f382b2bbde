package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildMessage_PlainText 无 HTML 时为纯文本报文
func TestBuildMessage_PlainText(t *testing.T) {
	msg := &Message{
		To:      []string{"jane@example.com"},
		Subject: "hello",
		Text:    "plain body",
	}
	raw := string(buildMessage("noreply@touropedia.io", msg))

	assert.Contains(t, raw, "From: noreply@touropedia.io\r\n")
	assert.Contains(t, raw, "To: jane@example.com\r\n")
	assert.Contains(t, raw, "Subject: hello\r\n")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, raw, "plain body")
	assert.NotContains(t, raw, "multipart/alternative")
}

// TestBuildMessage_HTML HTML 非空时为 multipart/alternative，两种正文都在
func TestBuildMessage_HTML(t *testing.T) {
	msg := &Message{
		To:      []string{"jane@example.com"},
		Subject: "hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}
	raw := string(buildMessage("noreply@touropedia.io", msg))

	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary="+altBoundary)
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, raw, "<p>html body</p>")
	assert.Contains(t, raw, "--"+altBoundary+"--")
}

// TestMock 记录发出的邮件并可注入失败
func TestMock(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Send(context.Background(), &Message{To: []string{"a@b.co"}, Subject: "x"}))
	require.Len(t, m.Sent, 1)
	assert.Equal(t, "x", m.Sent[0].Subject)

	m.Err = errors.New("smtp down")
	assert.Error(t, m.Send(context.Background(), &Message{To: []string{"a@b.co"}}))
	assert.Len(t, m.Sent, 1)
}
