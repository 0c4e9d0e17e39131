package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/utils"
)

// DomainAccount is the mailbox under warm-up.
type DomainAccount struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	SenderName   string `gorm:"column:sender_name;type:varchar(255);not null" json:"senderName"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);uniqueIndex;not null" json:"emailAddress"`
	// SMTP Configuration
	SmtpServer   string             `gorm:"column:smtp_server;type:varchar(255);not null" json:"smtpServer"`
	SmtpPort     int                `gorm:"column:smtp_port;not null" json:"smtpPort"`
	SmtpSecurity enum.EmailSecurity `gorm:"column:smtp_security;type:varchar(50);default:'tls'" json:"smtpSecurity"`
	SmtpUsername string             `gorm:"column:smtp_username;type:varchar(255);not null" json:"smtpUsername"`
	SmtpPassword string             `gorm:"column:smtp_password;type:text;not null" json:"-"`
	// IMAP Configuration
	ImapServer   string             `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int                `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapSecurity enum.EmailSecurity `gorm:"column:imap_security;type:varchar(50);default:'tls'" json:"imapSecurity"`
	ImapUsername string             `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string             `gorm:"column:imap_password;type:text;not null" json:"-"`
	// Operational status, denormalised view of whether an orchestrator holds the account
	Status     enum.AccountStatus `gorm:"column:status;type:varchar(50);default:'idle'" json:"status"`
	AutoWarmup bool               `gorm:"column:auto_warmup;default:false" json:"autoWarmup"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (DomainAccount) TableName() string {
	return "domain_accounts"
}

func (a *DomainAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("dacc", 16)
	}
	return nil
}
