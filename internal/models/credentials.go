package models

import "github.com/inboxlab/warmstack/internal/enum"

// MailboxCredentials is the transport-facing view of an account: enough to
// open an SMTP or IMAP session on its behalf. Passwords here are plaintext;
// repositories decrypt at-rest values before handing accounts out.
type MailboxCredentials struct {
	SenderName   string
	EmailAddress string

	SmtpServer   string
	SmtpPort     int
	SmtpSecurity enum.EmailSecurity
	SmtpUsername string
	SmtpPassword string

	ImapServer   string
	ImapPort     int
	ImapSecurity enum.EmailSecurity
	ImapUsername string
	ImapPassword string
}

func (a *DomainAccount) Credentials() MailboxCredentials {
	return MailboxCredentials{
		SenderName:   a.SenderName,
		EmailAddress: a.EmailAddress,
		SmtpServer:   a.SmtpServer,
		SmtpPort:     a.SmtpPort,
		SmtpSecurity: a.SmtpSecurity,
		SmtpUsername: a.SmtpUsername,
		SmtpPassword: a.SmtpPassword,
		ImapServer:   a.ImapServer,
		ImapPort:     a.ImapPort,
		ImapSecurity: a.ImapSecurity,
		ImapUsername: a.ImapUsername,
		ImapPassword: a.ImapPassword,
	}
}

func (a *LeadAccount) Credentials() MailboxCredentials {
	return MailboxCredentials{
		SenderName:   a.SenderName,
		EmailAddress: a.EmailAddress,
		SmtpServer:   a.SmtpServer,
		SmtpPort:     a.SmtpPort,
		SmtpSecurity: a.SmtpSecurity,
		SmtpUsername: a.SmtpUsername,
		SmtpPassword: a.SmtpPassword,
		ImapServer:   a.ImapServer,
		ImapPort:     a.ImapPort,
		ImapSecurity: a.ImapSecurity,
		ImapUsername: a.ImapUsername,
		ImapPassword: a.ImapPassword,
	}
}
