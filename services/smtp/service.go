package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/internal/utils"
)

type smtpSender struct{}

func NewSMTPSender() interfaces.EmailSender {
	return &smtpSender{}
}

// Send delivers one message on behalf of the given mailbox. The connection
// is single-use: it is established, drained, and closed within this call on
// every exit path. Connect/auth/send failures are surfaced verbatim.
func (s *smtpSender) Send(ctx context.Context, creds models.MailboxCredentials, request interfaces.SendRequest) (*interfaces.SendResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "smtpSender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("smtp_server", creds.SmtpServer)
	span.LogKV("from_address", creds.EmailAddress)
	span.LogKV("to_address", request.ToAddress)

	if err := validateRequest(creds, request); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	messageID := utils.GenerateMessageID(creds.EmailAddress)
	message := buildMessage(creds, request, messageID)

	accepted, err := s.sendToServer(ctx, creds, request.ToAddress, message)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &interfaces.SendResult{
		MessageID:          messageID,
		AcceptedRecipients: accepted,
	}, nil
}

func validateRequest(creds models.MailboxCredentials, request interfaces.SendRequest) error {
	if creds.EmailAddress == "" {
		return errors.New("from address is required")
	}
	if request.ToAddress == "" {
		return errors.New("at least one recipient is required")
	}
	if request.Subject == "" {
		return errors.New("email must have a subject")
	}
	if request.Body == "" {
		return errors.New("email must have text content")
	}
	return nil
}

// buildMessage produces the raw RFC 5322 payload. Replies carry In-Reply-To
// and References equal to the original message id.
func buildMessage(creds models.MailboxCredentials, request interfaces.SendRequest, messageID string) *bytes.Buffer {
	buffer := bytes.NewBuffer(nil)

	writeHeader(buffer, "From", fmt.Sprintf("%q <%s>", creds.SenderName, creds.EmailAddress))
	if request.ToName != "" {
		writeHeader(buffer, "To", fmt.Sprintf("%q <%s>", request.ToName, request.ToAddress))
	} else {
		writeHeader(buffer, "To", request.ToAddress)
	}
	writeHeader(buffer, "Subject", request.Subject)
	writeHeader(buffer, "Message-ID", messageID)
	writeHeader(buffer, "Date", time.Now().Format(time.RFC1123Z))
	if request.InReplyTo != "" {
		inReplyTo := ensureAngleBrackets(request.InReplyTo)
		writeHeader(buffer, "In-Reply-To", inReplyTo)
		writeHeader(buffer, "References", inReplyTo)
	}
	writeHeader(buffer, "MIME-Version", "1.0")
	writeHeader(buffer, "Content-Type", "text/plain; charset=UTF-8")
	buffer.WriteString("\r\n")
	buffer.WriteString(request.Body)

	return buffer
}

func writeHeader(buffer *bytes.Buffer, key, value string) {
	buffer.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
}

func ensureAngleBrackets(messageID string) string {
	return "<" + utils.NormalizeMessageID(messageID) + ">"
}

func (s *smtpSender) sendToServer(ctx context.Context, creds models.MailboxCredentials, recipient string, buffer *bytes.Buffer) ([]string, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "smtpSender.sendToServer")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	addr := fmt.Sprintf("%s:%d", creds.SmtpServer, creds.SmtpPort)
	auth := smtp.PlainAuth("", creds.SmtpUsername, creds.SmtpPassword, creds.SmtpServer)

	conn, err := s.dial(creds, addr)
	if err != nil {
		err = fmt.Errorf("failed to connect to SMTP server: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, creds.SmtpServer)
	if err != nil {
		err = fmt.Errorf("failed to create SMTP client: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer client.Close()

	if creds.SmtpSecurity == enum.EmailSecurityStartTLS {
		tlsConfig := &tls.Config{
			ServerName: creds.SmtpServer,
		}
		if err = client.StartTLS(tlsConfig); err != nil {
			err = fmt.Errorf("failed to start TLS: %w", err)
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	if err = client.Auth(auth); err != nil {
		err = fmt.Errorf("SMTP authentication failed: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err = client.Mail(creds.EmailAddress); err != nil {
		err = fmt.Errorf("SMTP MAIL command failed: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	accepted := []string{}
	if err = client.Rcpt(recipient); err != nil {
		err = fmt.Errorf("SMTP RCPT command failed for %s: %w", recipient, err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	accepted = append(accepted, recipient)

	dataWriter, err := client.Data()
	if err != nil {
		err = fmt.Errorf("SMTP DATA command failed: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if _, err = dataWriter.Write(buffer.Bytes()); err != nil {
		err = fmt.Errorf("failed to write email data: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err = dataWriter.Close(); err != nil {
		err = fmt.Errorf("failed to close data writer: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err = client.Quit(); err != nil {
		tracing.TraceErr(span, err)
	}

	return accepted, nil
}

// dial opens the transport connection: implicit TLS for ssl/tls security,
// plain TCP otherwise (STARTTLS upgrades after the handshake).
func (s *smtpSender) dial(creds models.MailboxCredentials, addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	if creds.SmtpSecurity == enum.EmailSecurityTLS || creds.SmtpSecurity == enum.EmailSecuritySSL {
		tlsConfig := &tls.Config{
			ServerName: creds.SmtpServer,
		}
		return tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	}

	return dialer.Dial("tcp", addr)
}
