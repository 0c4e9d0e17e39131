package repository

import (
	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/crypto"
	"github.com/inboxlab/warmstack/internal/models"
)

type Repositories struct {
	DomainAccountRepository interfaces.DomainAccountRepository
	LeadAccountRepository   interfaces.LeadAccountRepository
	WarmupSessionRepository interfaces.WarmupSessionRepository
	MailLogRepository       interfaces.MailLogRepository
}

func InitRepositories(db *gorm.DB, encryptor *crypto.Encryptor) *Repositories {
	return &Repositories{
		DomainAccountRepository: NewDomainAccountRepository(db, encryptor),
		LeadAccountRepository:   NewLeadAccountRepository(db, encryptor),
		WarmupSessionRepository: NewWarmupSessionRepository(db),
		MailLogRepository:       NewMailLogRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DomainAccount{},
		&models.LeadAccount{},
		&models.WarmupSession{},
		&models.MailLog{},
	)
}
