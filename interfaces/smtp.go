package interfaces

import (
	"context"

	"github.com/inboxlab/warmstack/internal/models"
)

// SendRequest describes one outbound message. InReplyTo, when set, is copied
// into both In-Reply-To and References headers.
type SendRequest struct {
	ToAddress string
	ToName    string
	Subject   string
	Body      string
	InReplyTo string
}

type SendResult struct {
	MessageID          string
	AcceptedRecipients []string
}

// EmailSender sends a single message over SMTP on behalf of the given
// mailbox. The connection is single-use and closed on every exit path.
type EmailSender interface {
	Send(ctx context.Context, creds models.MailboxCredentials, request SendRequest) (*SendResult, error)
}
