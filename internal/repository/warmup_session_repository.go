package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/internal/utils"
)

type warmupSessionRepository struct {
	db *gorm.DB
}

func NewWarmupSessionRepository(db *gorm.DB) interfaces.WarmupSessionRepository {
	return &warmupSessionRepository{db: db}
}

func (r *warmupSessionRepository) GetByID(ctx context.Context, id string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupSessionRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var session models.WarmupSession
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&session)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get warmup session: %w", result.Error)
	}

	return &session, nil
}

// GetActiveToday returns today's non-terminal session row, if any
func (r *warmupSessionRepository) GetActiveToday(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupSessionRepository.GetActiveToday")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, domainAccountID)

	var session models.WarmupSession
	result := r.db.WithContext(ctx).
		Where("domain_account_id = ? AND session_date = ? AND status NOT IN ?",
			domainAccountID, utils.Today(), []enum.SessionStatus{enum.SessionCompleted, enum.SessionFailed}).
		First(&session)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get active session: %w", result.Error)
	}

	return &session, nil
}

func (r *warmupSessionRepository) GetCompletedToday(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupSessionRepository.GetCompletedToday")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, domainAccountID)

	var session models.WarmupSession
	result := r.db.WithContext(ctx).
		Where("domain_account_id = ? AND session_date = ? AND status = ?",
			domainAccountID, utils.Today(), enum.SessionCompleted).
		First(&session)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get completed session: %w", result.Error)
	}

	return &session, nil
}

// CreateOrReset is a single upsert on the (domain_account_id, session_date)
// uniqueness key, not a read-then-write.
func (r *warmupSessionRepository) CreateOrReset(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupSessionRepository.CreateOrReset")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, domainAccountID)

	now := utils.Now()
	session := &models.WarmupSession{
		DomainAccountID: domainAccountID,
		SessionDate:     utils.Today(),
		CurrentLead:     0,
		Status:          enum.SessionPending,
		StartedAt:       &now,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "domain_account_id"}, {Name: "session_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":             enum.SessionPending,
			"current_lead_index": 0,
			"last_message_id":    "",
			"error_message":      "",
			"completed_at":       nil,
			"started_at":         now,
			"updated_at":         now,
		}),
	}).Create(session)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to create or reset session: %w", result.Error)
	}

	// Re-read: on conflict the existing row keeps its original id
	var stored models.WarmupSession
	result = r.db.WithContext(ctx).
		Where("domain_account_id = ? AND session_date = ?", domainAccountID, session.SessionDate).
		First(&stored)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to load session after upsert: %w", result.Error)
	}

	return &stored, nil
}

// UpdateStatus applies the status and any optional fields in one UPDATE and
// returns the stored row. A write that matched no row still returns the
// stored row unchanged so callers can treat a racing update as "already
// advanced".
func (r *warmupSessionRepository) UpdateStatus(ctx context.Context, id string, status enum.SessionStatus, update *interfaces.SessionUpdate) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupSessionRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.SetTag("session.status", status.String())

	fields := map[string]interface{}{
		"status":     status,
		"updated_at": utils.Now(),
	}
	if update != nil {
		if update.CurrentLead != nil {
			fields["current_lead_index"] = *update.CurrentLead
		}
		if update.LastMessageID != nil {
			fields["last_message_id"] = *update.LastMessageID
		}
		if update.ErrorMessage != nil {
			fields["error_message"] = *update.ErrorMessage
		}
		fields["completed_at"] = update.CompletedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.WarmupSession{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to update session status: %w", result.Error)
	}

	var stored models.WarmupSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stored).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to load session after update: %w", err)
	}

	return &stored, nil
}

func (r *warmupSessionRepository) List(ctx context.Context, domainAccountID string) ([]*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupSessionRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).Model(&models.WarmupSession{})
	if domainAccountID != "" {
		query = query.Where("domain_account_id = ?", domainAccountID)
	}

	var sessions []*models.WarmupSession
	if err := query.Order("created_at DESC").Find(&sessions).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}
