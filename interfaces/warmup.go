package interfaces

import (
	"context"

	"github.com/inboxlab/warmstack/internal/models"
)

type ActiveWarmup struct {
	CurrentLeadIndex int  `json:"currentLeadIndex"`
	TotalLeads       int  `json:"totalLeads"`
	IsPaused         bool `json:"isPaused"`
}

type WarmupStatus struct {
	Active *ActiveWarmup `json:"active,omitempty"`
	// Session is today's active row, or the completed row when none is active.
	Session *models.WarmupSession `json:"session"`
	// CompletedToday is false when a completed session exists but leads were
	// appended afterwards, signalling that a restart is available.
	CompletedToday bool `json:"completedToday"`
}

// WarmupService is the control facade: the only entry point into live
// orchestrators. All operations are keyed by domain account id.
type WarmupService interface {
	Start(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	Pause(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	Resume(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	Stop(ctx context.Context, domainAccountID string) (*models.WarmupSession, error)
	Status(ctx context.Context, domainAccountID string) (*WarmupStatus, error)
	// Shutdown pauses every live orchestrator; used on process termination.
	Shutdown(ctx context.Context) error
}
