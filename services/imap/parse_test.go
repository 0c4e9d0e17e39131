package imap

import (
	"bytes"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchedMessage(raw string, envelope *imap.Envelope) (*imap.Message, *imap.BodySectionName) {
	section := &imap.BodySectionName{}
	return &imap.Message{
		Envelope: envelope,
		Body: map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(raw),
		},
	}, section
}

func TestParseMessagePlainText(t *testing.T) {
	raw := "From: \"Nora Quinn\" <nora@warmdomain.io>\r\n" +
		"To: lead1@responder.io\r\n" +
		"Subject: Quick question\r\n" +
		"Message-ID: <abc123@warmdomain.io>\r\n" +
		"In-Reply-To: <orig@responder.io>\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"Hi there, hope the week is treating you well.\r\n"

	sent := time.Date(2026, time.August, 26, 9, 30, 0, 0, time.UTC)
	msg, section := fetchedMessage(raw, &imap.Envelope{
		Subject:   "Quick question",
		MessageId: "<abc123@warmdomain.io>",
		Date:      sent,
		From:      []*imap.Address{{MailboxName: "nora", HostName: "warmdomain.io"}},
		To:        []*imap.Address{{MailboxName: "lead1", HostName: "responder.io"}},
	})

	incoming, err := parseMessage(msg, section)
	require.NoError(t, err)

	assert.Equal(t, "abc123@warmdomain.io", incoming.MessageID)
	assert.Equal(t, "orig@responder.io", incoming.InReplyTo)
	assert.Equal(t, "nora@warmdomain.io", incoming.FromAddress)
	assert.Equal(t, "lead1@responder.io", incoming.ToAddress)
	assert.Equal(t, "Quick question", incoming.Subject)
	assert.Contains(t, incoming.Body, "hope the week is treating you well")
	assert.Equal(t, sent, incoming.Date)
}

func TestParseMessageHeaderFallback(t *testing.T) {
	raw := "From: Lead One <lead1@Responder.IO>\r\n" +
		"To: nora@warmdomain.io\r\n" +
		"Subject: Re: Quick question\r\n" +
		"Message-ID: <reply1@responder.io>\r\n" +
		"Date: Wed, 26 Aug 2026 10:15:00 +0000\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Sounds good.\r\n"

	msg, section := fetchedMessage(raw, nil)

	incoming, err := parseMessage(msg, section)
	require.NoError(t, err)

	assert.Equal(t, "reply1@responder.io", incoming.MessageID)
	assert.Equal(t, "lead1@responder.io", incoming.FromAddress, "header addresses are normalised")
	assert.Equal(t, "nora@warmdomain.io", incoming.ToAddress)
	assert.False(t, incoming.Date.IsZero())
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: nora@warmdomain.io\r\n" +
		"To: lead1@responder.io\r\n" +
		"Subject: Hello\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		"<html><body><p>Hi <b>there</b>, quick note.</p></body></html>\r\n"

	msg, section := fetchedMessage(raw, nil)

	incoming, err := parseMessage(msg, section)
	require.NoError(t, err)

	assert.NotContains(t, incoming.Body, "<")
	assert.Contains(t, incoming.Body, "Hi there, quick note.")
}

func TestParseMessageWithoutBody(t *testing.T) {
	section := &imap.BodySectionName{}
	msg := &imap.Message{}

	_, err := parseMessage(msg, section)
	assert.Error(t, err)

	_, err = parseMessage(nil, section)
	assert.Error(t, err)
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "plain", stripHTMLTags("plain"))
	assert.Equal(t, "bold text", stripHTMLTags("<b>bold</b> text"))
	assert.Equal(t, "", stripHTMLTags("<br/>"))
}
