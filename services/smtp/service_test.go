package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/models"
)

func testCreds() models.MailboxCredentials {
	return models.MailboxCredentials{
		SenderName:   "Nora Quinn",
		EmailAddress: "nora@warmdomain.io",
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	request := interfaces.SendRequest{
		ToAddress: "lead@responder.io",
		ToName:    "Lead One",
		Subject:   "Quick question",
		Body:      "Hi there, hope the week is treating you well.",
	}

	raw := buildMessage(testCreds(), request, "<msg-1@warmdomain.io>").String()
	headerPart, bodyPart, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found, "headers and body separated by a blank line")

	assert.Contains(t, headerPart, "From: \"Nora Quinn\" <nora@warmdomain.io>\r\n")
	assert.Contains(t, headerPart, "To: \"Lead One\" <lead@responder.io>\r\n")
	assert.Contains(t, headerPart, "Subject: Quick question\r\n")
	assert.Contains(t, headerPart, "Message-ID: <msg-1@warmdomain.io>\r\n")
	assert.Contains(t, headerPart, "MIME-Version: 1.0\r\n")
	assert.Contains(t, headerPart, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.NotContains(t, headerPart, "In-Reply-To")
	assert.NotContains(t, headerPart, "References")

	assert.Equal(t, request.Body, bodyPart)
}

func TestBuildMessageWithoutRecipientName(t *testing.T) {
	request := interfaces.SendRequest{
		ToAddress: "lead@responder.io",
		Subject:   "Hello",
		Body:      "Short note.",
	}

	raw := buildMessage(testCreds(), request, "<msg-2@warmdomain.io>").String()
	assert.Contains(t, raw, "To: lead@responder.io\r\n")
}

func TestBuildMessageReplyThreading(t *testing.T) {
	request := interfaces.SendRequest{
		ToAddress: "nora@warmdomain.io",
		Subject:   "Re: Quick question",
		Body:      "Sounds good.",
		InReplyTo: "original@warmdomain.io",
	}

	raw := buildMessage(testCreds(), request, "<msg-3@responder.io>").String()

	// In-Reply-To and References both carry the bracketed original id,
	// whether or not the caller included the brackets.
	assert.Contains(t, raw, "In-Reply-To: <original@warmdomain.io>\r\n")
	assert.Contains(t, raw, "References: <original@warmdomain.io>\r\n")
}

func TestEnsureAngleBrackets(t *testing.T) {
	assert.Equal(t, "<abc@example.com>", ensureAngleBrackets("abc@example.com"))
	assert.Equal(t, "<abc@example.com>", ensureAngleBrackets("<abc@example.com>"))
	assert.Equal(t, "<abc@example.com>", ensureAngleBrackets("  <abc@example.com>  "))
}

func TestValidateRequest(t *testing.T) {
	valid := interfaces.SendRequest{
		ToAddress: "lead@responder.io",
		Subject:   "Hello",
		Body:      "Body",
	}

	assert.NoError(t, validateRequest(testCreds(), valid))

	noFrom := testCreds()
	noFrom.EmailAddress = ""
	assert.Error(t, validateRequest(noFrom, valid))

	tests := []struct {
		name   string
		mutate func(r *interfaces.SendRequest)
	}{
		{"missing recipient", func(r *interfaces.SendRequest) { r.ToAddress = "" }},
		{"missing subject", func(r *interfaces.SendRequest) { r.Subject = "" }},
		{"missing body", func(r *interfaces.SendRequest) { r.Body = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := valid
			tt.mutate(&request)
			assert.Error(t, validateRequest(testCreds(), request))
		})
	}
}
