package imap

import (
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/utils"
)

// parseMessage turns a fetched IMAP message into an IncomingMessage.
// Envelope data is preferred for addressing; the MIME body supplies the
// text content and threading headers the envelope does not carry.
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*interfaces.IncomingMessage, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, errors.New("message has no body section")
	}

	envelope, err := enmime.ReadEnvelope(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse MIME message")
	}

	incoming := &interfaces.IncomingMessage{
		MessageID: utils.NormalizeMessageID(envelope.GetHeader("Message-Id")),
		Subject:   envelope.GetHeader("Subject"),
		Body:      extractTextBody(envelope),
		InReplyTo: utils.NormalizeMessageID(envelope.GetHeader("In-Reply-To")),
	}

	if msg.Envelope != nil {
		if incoming.MessageID == "" {
			incoming.MessageID = utils.NormalizeMessageID(msg.Envelope.MessageId)
		}
		if incoming.Subject == "" {
			incoming.Subject = msg.Envelope.Subject
		}
		if incoming.InReplyTo == "" {
			incoming.InReplyTo = utils.NormalizeMessageID(msg.Envelope.InReplyTo)
		}
		incoming.FromAddress = firstAddress(msg.Envelope.From)
		incoming.ToAddress = firstAddress(msg.Envelope.To)
		incoming.Date = msg.Envelope.Date
	}

	if incoming.FromAddress == "" {
		incoming.FromAddress = utils.NormalizeEmailAddress(envelope.GetHeader("From"))
	}
	if incoming.ToAddress == "" {
		incoming.ToAddress = utils.NormalizeEmailAddress(envelope.GetHeader("To"))
	}
	if incoming.Date.IsZero() {
		if date, err := envelope.Date(); err == nil {
			incoming.Date = date
		} else {
			incoming.Date = time.Now().UTC()
		}
	}

	return incoming, nil
}

func firstAddress(addresses []*imap.Address) string {
	if len(addresses) == 0 {
		return ""
	}
	return utils.NormalizeEmailAddress(addresses[0].Address())
}

// extractTextBody prefers the plain-text part; HTML-only messages fall back
// to a crude tag strip so reply generation always has something to quote.
func extractTextBody(envelope *enmime.Envelope) string {
	if strings.TrimSpace(envelope.Text) != "" {
		return envelope.Text
	}
	if envelope.HTML != "" {
		return stripHTMLTags(envelope.HTML)
	}
	return ""
}

func stripHTMLTags(html string) string {
	var builder strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(r)
		}
	}
	return strings.TrimSpace(builder.String())
}
