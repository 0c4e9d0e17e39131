package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/crypto"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/internal/utils"
)

type leadAccountRepository struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

func NewLeadAccountRepository(db *gorm.DB, encryptor *crypto.Encryptor) interfaces.LeadAccountRepository {
	return &leadAccountRepository{db: db, encryptor: encryptor}
}

func (r *leadAccountRepository) Create(ctx context.Context, account *models.LeadAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "leadAccountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	account.EmailAddress = utils.NormalizeEmailAddress(account.EmailAddress)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LeadAccount{}).
		Where("email_address = ?", account.EmailAddress).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to check lead account email: %w", err)
	}
	if count > 0 {
		return customerrors.ErrDuplicateEmail
	}

	smtpEnc, err := r.encryptor.Encrypt(account.SmtpPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to encrypt smtp password: %w", err)
	}
	imapEnc, err := r.encryptor.Encrypt(account.ImapPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to encrypt imap password: %w", err)
	}
	account.SmtpPassword = smtpEnc
	account.ImapPassword = imapEnc

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create lead account: %w", err)
	}

	r.decryptPasswords(account)
	return nil
}

func (r *leadAccountRepository) GetByID(ctx context.Context, id string) (*models.LeadAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "leadAccountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var account models.LeadAccount
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get lead account: %w", result.Error)
	}

	r.decryptPasswords(&account)
	return &account, nil
}

// List returns leads under their stable total order. The orchestrator's
// current_lead_index indexes into this order, so it must never change for
// existing rows.
func (r *leadAccountRepository) List(ctx context.Context) ([]*models.LeadAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "leadAccountRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.LeadAccount
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list lead accounts: %w", err)
	}

	for _, account := range accounts {
		r.decryptPasswords(account)
	}
	return accounts, nil
}

func (r *leadAccountRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "leadAccountRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.LeadAccount{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete lead account: %w", result.Error)
	}

	return nil
}

func (r *leadAccountRepository) decryptPasswords(account *models.LeadAccount) {
	if plain, err := r.encryptor.Decrypt(account.SmtpPassword); err == nil {
		account.SmtpPassword = plain
	}
	if plain, err := r.encryptor.Decrypt(account.ImapPassword); err == nil {
		account.ImapPassword = plain
	}
}
