package interfaces

import (
	"context"
	"time"

	"github.com/inboxlab/warmstack/internal/models"
)

// IncomingMessage is the parsed view of a fetched mail message.
type IncomingMessage struct {
	MessageID   string
	FromAddress string
	ToAddress   string
	Subject     string
	Body        string
	InReplyTo   string
	Date        time.Time
}

// MessageEvent is one item on a subscription's event stream: either a new
// matching message or a single terminal timeout notification.
type MessageEvent struct {
	Timeout bool
	Message *IncomingMessage
}

type SubscribeOptions struct {
	// Server-side FROM filter; empty means all new messages.
	FromFilter string
	// Wait budget measured from subscription start. Zero uses the
	// subscriber's configured default.
	WaitTimeout time.Duration
}

// Subscription delivers new INBOX messages at least once until disconnected.
// Events() is closed after Disconnect or after the timeout event fires.
type Subscription interface {
	Events() <-chan MessageEvent
	Disconnect()
}

// MailboxSubscriber opens persistent INBOX listening sessions.
type MailboxSubscriber interface {
	Subscribe(ctx context.Context, creds models.MailboxCredentials, opts SubscribeOptions) (Subscription, error)
}
