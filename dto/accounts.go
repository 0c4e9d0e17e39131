package dto

import (
	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
)

// MailboxAccountRequest is the shared payload for creating warm-up and lead
// mailboxes. Passwords arrive in plaintext and are encrypted at rest by the
// repositories.
type MailboxAccountRequest struct {
	SenderName   string             `json:"senderName" binding:"required"`
	EmailAddress string             `json:"emailAddress" binding:"required,email"`
	SmtpServer   string             `json:"smtpServer" binding:"required"`
	SmtpPort     int                `json:"smtpPort" binding:"required"`
	SmtpSecurity enum.EmailSecurity `json:"smtpSecurity"`
	SmtpUsername string             `json:"smtpUsername" binding:"required"`
	SmtpPassword string             `json:"smtpPassword" binding:"required"`
	ImapServer   string             `json:"imapServer" binding:"required"`
	ImapPort     int                `json:"imapPort" binding:"required"`
	ImapSecurity enum.EmailSecurity `json:"imapSecurity"`
	ImapUsername string             `json:"imapUsername" binding:"required"`
	ImapPassword string             `json:"imapPassword" binding:"required"`
}

type CreateDomainAccountRequest struct {
	MailboxAccountRequest
	AutoWarmup bool `json:"autoWarmup"`
}

type CreateLeadAccountRequest struct {
	MailboxAccountRequest
}

func (r *CreateDomainAccountRequest) ToModel() *models.DomainAccount {
	return &models.DomainAccount{
		SenderName:   r.SenderName,
		EmailAddress: r.EmailAddress,
		SmtpServer:   r.SmtpServer,
		SmtpPort:     r.SmtpPort,
		SmtpSecurity: defaultSecurity(r.SmtpSecurity),
		SmtpUsername: r.SmtpUsername,
		SmtpPassword: r.SmtpPassword,
		ImapServer:   r.ImapServer,
		ImapPort:     r.ImapPort,
		ImapSecurity: defaultSecurity(r.ImapSecurity),
		ImapUsername: r.ImapUsername,
		ImapPassword: r.ImapPassword,
		Status:       enum.AccountIdle,
		AutoWarmup:   r.AutoWarmup,
	}
}

func (r *CreateLeadAccountRequest) ToModel() *models.LeadAccount {
	return &models.LeadAccount{
		SenderName:   r.SenderName,
		EmailAddress: r.EmailAddress,
		SmtpServer:   r.SmtpServer,
		SmtpPort:     r.SmtpPort,
		SmtpSecurity: defaultSecurity(r.SmtpSecurity),
		SmtpUsername: r.SmtpUsername,
		SmtpPassword: r.SmtpPassword,
		ImapServer:   r.ImapServer,
		ImapPort:     r.ImapPort,
		ImapSecurity: defaultSecurity(r.ImapSecurity),
		ImapUsername: r.ImapUsername,
		ImapPassword: r.ImapPassword,
	}
}

func defaultSecurity(security enum.EmailSecurity) enum.EmailSecurity {
	if security == "" {
		return enum.EmailSecurityTLS
	}
	return security
}
