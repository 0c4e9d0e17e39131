package cron

import (
	"context"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/interfaces"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/pkg/errors"
)

// CronManager schedules the daily auto-warmup kick-off for every domain
// account that opted in.
type CronManager struct {
	cfg    *config.WarmupConfig
	log    logger.Logger
	cron   *cronv3.Cron
	warmup interfaces.WarmupService
	boxes  interfaces.DomainAccountRepository
}

func NewCronManager(cfg *config.WarmupConfig, log logger.Logger, warmup interfaces.WarmupService, boxes interfaces.DomainAccountRepository) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		warmup: warmup,
		boxes:  boxes,
	}
}

// Start initializes and starts the cron scheduler.
func (cm *CronManager) Start() {
	cm.log.Info("Starting cron manager")

	c := cronv3.New(cronv3.WithChain(
		cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
		cronv3.Recover(cronv3.DefaultLogger),
	))

	if cm.cfg.CronScheduleWarmup != "" {
		_, err := c.AddFunc(cm.cfg.CronScheduleWarmup, cm.runAutoWarmup)
		if err != nil {
			cm.log.Fatalf("Could not add auto-warmup cron job: %v", err)
		}
		cm.log.Infof("Registered auto-warmup job with schedule: %s", cm.cfg.CronScheduleWarmup)
	}

	c.Start()
	cm.cron = c
}

func (cm *CronManager) Stop() {
	if cm.cron != nil {
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	cm.log.Info("Cron manager stopped")
}

// runAutoWarmup starts a session for every auto-warmup account. Per-account
// rejections (already running, completed today) are expected and logged at
// debug level only.
func (cm *CronManager) runAutoWarmup() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runAutoWarmup")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.boxes.ListAutoWarmup(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list auto-warmup accounts: %v", err)
		return
	}

	started := 0
	for _, account := range accounts {
		_, err := cm.warmup.Start(ctx, account.ID)
		switch {
		case err == nil:
			started++
		case errors.Is(err, customerrors.ErrAlreadyRunning),
			errors.Is(err, customerrors.ErrCompletedToday),
			errors.Is(err, customerrors.ErrNoLeads):
			cm.log.Debugf("Skipping auto-warmup for %s: %v", account.EmailAddress, err)
		default:
			tracing.TraceErr(span, err)
			cm.log.Errorf("Failed to start auto-warmup for %s: %v", account.EmailAddress, err)
		}
	}

	cm.log.Infof("Auto-warmup pass finished: %d of %d account(s) started", started, len(accounts))
}
