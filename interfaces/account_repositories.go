package interfaces

import (
	"context"

	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
)

type DomainAccountRepository interface {
	Create(ctx context.Context, account *models.DomainAccount) error
	GetByID(ctx context.Context, id string) (*models.DomainAccount, error)
	GetByEmail(ctx context.Context, email string) (*models.DomainAccount, error)
	List(ctx context.Context) ([]*models.DomainAccount, error)
	ListAutoWarmup(ctx context.Context) ([]*models.DomainAccount, error)
	UpdateStatus(ctx context.Context, id string, status enum.AccountStatus) error
	Delete(ctx context.Context, id string) error
}

type LeadAccountRepository interface {
	Create(ctx context.Context, account *models.LeadAccount) error
	GetByID(ctx context.Context, id string) (*models.LeadAccount, error)
	// List returns leads in their stable total order: created_at ascending.
	List(ctx context.Context) ([]*models.LeadAccount, error)
	Delete(ctx context.Context, id string) error
}
