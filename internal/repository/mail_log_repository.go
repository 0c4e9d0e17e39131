package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/internal/utils"
)

type mailLogRepository struct {
	db *gorm.DB
}

func NewMailLogRepository(db *gorm.DB) interfaces.MailLogRepository {
	return &mailLogRepository{db: db}
}

func (r *mailLogRepository) Create(ctx context.Context, entry *models.MailLog) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailLogRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	entry.MessageID = utils.NormalizeMessageID(entry.MessageID)
	entry.InReplyTo = utils.NormalizeMessageID(entry.InReplyTo)

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to append mail log: %w", err)
	}

	return nil
}

func (r *mailLogRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.MailLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailLogRepository.GetBySession")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, sessionID)

	var entries []*models.MailLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get mail logs for session: %w", err)
	}

	return entries, nil
}

func (r *mailLogRepository) GetByMessageID(ctx context.Context, messageID string) (*models.MailLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailLogRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var entry models.MailLog
	result := r.db.WithContext(ctx).
		Where("message_id = ?", utils.NormalizeMessageID(messageID)).
		First(&entry)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get mail log by message id: %w", result.Error)
	}

	return &entry, nil
}

func (r *mailLogRepository) GetRecent(ctx context.Context, limit int) ([]*models.MailLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailLogRepository.GetRecent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if limit <= 0 {
		limit = 50
	}

	var entries []*models.MailLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get recent mail logs: %w", err)
	}

	return entries, nil
}
