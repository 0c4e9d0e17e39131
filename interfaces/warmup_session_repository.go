package interfaces

import (
	"context"
	"time"

	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
)

// SessionUpdate carries the optional fields of an UpdateStatus call.
// Nil pointer fields are left untouched, except CompletedAt which is
// written verbatim: passing nil clears the stored timestamp.
type SessionUpdate struct {
	CurrentLead   *int
	LastMessageID *string
	ErrorMessage  *string
	CompletedAt   *time.Time
}

type WarmupSessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.WarmupSession, error)
	// GetActiveToday returns today's row with status not in {completed, failed},
	// or nil when none exists.
	GetActiveToday(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	GetCompletedToday(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	// CreateOrReset reuses today's row when present: status back to pending,
	// index 0, last_message_id/error/completed_at cleared, started_at bumped.
	CreateOrReset(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	UpdateStatus(ctx context.Context, id string, status enum.SessionStatus, update *SessionUpdate) (*models.WarmupSession, error)
	List(ctx context.Context, domainAccountID string) ([]*models.WarmupSession, error)
}
