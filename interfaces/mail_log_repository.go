package interfaces

import (
	"context"

	"github.com/inboxlab/warmstack/internal/models"
)

// MailLogRepository is append-only: no update or delete exists.
type MailLogRepository interface {
	Create(ctx context.Context, entry *models.MailLog) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.MailLog, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.MailLog, error)
	GetRecent(ctx context.Context, limit int) ([]*models.MailLog, error)
}
