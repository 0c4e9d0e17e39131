package interfaces

import (
	"context"

	"github.com/inboxlab/warmstack/internal/models"
)

// EventPublisher emits warm-up lifecycle events for downstream consumers.
// Implementations must tolerate broker unavailability; publishing failures
// never interrupt a warm-up session.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event string, session *models.WarmupSession)
	PublishMailEvent(ctx context.Context, entry *models.MailLog)
	Close() error
}
