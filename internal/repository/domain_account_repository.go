package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/crypto"
	"github.com/inboxlab/warmstack/internal/enum"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/internal/utils"
)

type domainAccountRepository struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

func NewDomainAccountRepository(db *gorm.DB, encryptor *crypto.Encryptor) interfaces.DomainAccountRepository {
	return &domainAccountRepository{db: db, encryptor: encryptor}
}

func (r *domainAccountRepository) Create(ctx context.Context, account *models.DomainAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	account.EmailAddress = utils.NormalizeEmailAddress(account.EmailAddress)

	existing, err := r.GetByEmail(ctx, account.EmailAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if existing != nil {
		return customerrors.ErrDuplicateEmail
	}

	if err := r.encryptPasswords(account); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create domain account: %w", err)
	}

	r.decryptPasswords(account)
	return nil
}

func (r *domainAccountRepository) GetByID(ctx context.Context, id string) (*models.DomainAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var account models.DomainAccount
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get domain account: %w", result.Error)
	}

	r.decryptPasswords(&account)
	return &account, nil
}

func (r *domainAccountRepository) GetByEmail(ctx context.Context, email string) (*models.DomainAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.GetByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.DomainAccount
	result := r.db.WithContext(ctx).
		Where("email_address = ?", utils.NormalizeEmailAddress(email)).
		First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get domain account by email: %w", result.Error)
	}

	r.decryptPasswords(&account)
	return &account, nil
}

func (r *domainAccountRepository) List(ctx context.Context) ([]*models.DomainAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.DomainAccount
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list domain accounts: %w", err)
	}

	for _, account := range accounts {
		r.decryptPasswords(account)
	}
	return accounts, nil
}

func (r *domainAccountRepository) ListAutoWarmup(ctx context.Context) ([]*models.DomainAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.ListAutoWarmup")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.DomainAccount
	err := r.db.WithContext(ctx).
		Where("auto_warmup = ?", true).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list auto-warmup accounts: %w", err)
	}

	for _, account := range accounts {
		r.decryptPasswords(account)
	}
	return accounts, nil
}

func (r *domainAccountRepository) UpdateStatus(ctx context.Context, id string, status enum.AccountStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.SetTag("account.status", status.String())

	result := r.db.WithContext(ctx).
		Model(&models.DomainAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update domain account status: %w", result.Error)
	}

	return nil
}

func (r *domainAccountRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "domainAccountRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DomainAccount{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete domain account: %w", result.Error)
	}

	return nil
}

func (r *domainAccountRepository) encryptPasswords(account *models.DomainAccount) error {
	smtpEnc, err := r.encryptor.Encrypt(account.SmtpPassword)
	if err != nil {
		return fmt.Errorf("failed to encrypt smtp password: %w", err)
	}
	imapEnc, err := r.encryptor.Encrypt(account.ImapPassword)
	if err != nil {
		return fmt.Errorf("failed to encrypt imap password: %w", err)
	}
	account.SmtpPassword = smtpEnc
	account.ImapPassword = imapEnc
	return nil
}

// decryptPasswords restores plaintext credentials on a row loaded from the
// store. Values that fail to decrypt are left as-is rather than erroring the
// whole read; the transport will surface the auth failure.
func (r *domainAccountRepository) decryptPasswords(account *models.DomainAccount) {
	if plain, err := r.encryptor.Decrypt(account.SmtpPassword); err == nil {
		account.SmtpPassword = plain
	}
	if plain, err := r.encryptor.Decrypt(account.ImapPassword); err == nil {
		account.ImapPassword = plain
	}
}
