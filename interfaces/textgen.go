package interfaces

import "context"

type GeneratedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TextGenerator produces message bodies for warm-up traffic. Stateless from
// the orchestrator's perspective; failures are fatal for the current send.
type TextGenerator interface {
	Outbound(ctx context.Context, senderName, recipientName, senderAddress string) (*GeneratedEmail, error)
	Reply(ctx context.Context, replierName, originalSenderName, originalSubject, originalBody string) (*GeneratedEmail, error)
}
