package services

import (
	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/repository"
	"github.com/inboxlab/warmstack/services/events"
	"github.com/inboxlab/warmstack/services/imap"
	"github.com/inboxlab/warmstack/services/smtp"
	"github.com/inboxlab/warmstack/services/textgen"
	"github.com/inboxlab/warmstack/services/warmup"
)

type Services struct {
	EmailSender       interfaces.EmailSender
	MailboxSubscriber interfaces.MailboxSubscriber
	TextGenerator     interfaces.TextGenerator
	EventPublisher    interfaces.EventPublisher
	WarmupService     interfaces.WarmupService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
		publisher = rabbitPublisher
	} else {
		log.Info("RABBITMQ_URL not set, warm-up events will not be published")
		publisher = events.NewNoopPublisher()
	}

	sender := smtp.NewSMTPSender()
	subscriber := imap.NewIMAPSubscriber(cfg.WarmupConfig.ImapWaitTimeout(), cfg.WarmupConfig.PollInterval())
	generator := textgen.NewTextGenService(cfg.TextGenConfig)

	warmupService := warmup.NewWarmupService(
		repos.WarmupSessionRepository,
		repos.MailLogRepository,
		repos.DomainAccountRepository,
		repos.LeadAccountRepository,
		sender,
		subscriber,
		generator,
		publisher,
		cfg.WarmupConfig,
		log,
	)

	services := Services{
		EmailSender:       sender,
		MailboxSubscriber: subscriber,
		TextGenerator:     generator,
		EventPublisher:    publisher,
		WarmupService:     warmupService,
	}

	return &services, nil
}
