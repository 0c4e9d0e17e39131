package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
	"github.com/inboxlab/warmstack/services/events"
)

// warmupService is the control facade: the single owner of the live
// orchestrator registry. Session rows left non-terminal by a crash are not
// auto-revived at process start; they stay as-is until an explicit start.
type warmupService struct {
	sessions   interfaces.WarmupSessionRepository
	mailLog    interfaces.MailLogRepository
	domains    interfaces.DomainAccountRepository
	leadsRepo  interfaces.LeadAccountRepository
	sender     interfaces.EmailSender
	subscriber interfaces.MailboxSubscriber
	textgen    interfaces.TextGenerator
	publisher  interfaces.EventPublisher
	cfg        *config.WarmupConfig
	log        logger.Logger

	mu sync.Mutex
	// orchestrators maps domain account id to its live instance. A nil
	// value is a reservation held while a start call resolves session
	// state; it counts as registered for duplicate-start purposes but not
	// as live for pause/stop/status.
	orchestrators map[string]*orchestrator
}

func NewWarmupService(
	sessions interfaces.WarmupSessionRepository,
	mailLog interfaces.MailLogRepository,
	domains interfaces.DomainAccountRepository,
	leads interfaces.LeadAccountRepository,
	sender interfaces.EmailSender,
	subscriber interfaces.MailboxSubscriber,
	textgen interfaces.TextGenerator,
	publisher interfaces.EventPublisher,
	cfg *config.WarmupConfig,
	log logger.Logger,
) interfaces.WarmupService {
	return &warmupService{
		sessions:      sessions,
		mailLog:       mailLog,
		domains:       domains,
		leadsRepo:     leads,
		sender:        sender,
		subscriber:    subscriber,
		textgen:       textgen,
		publisher:     publisher,
		cfg:           cfg,
		log:           log,
		orchestrators: make(map[string]*orchestrator),
	}
}

// Start launches a warm-up session for the domain account. Exactly one of
// two racing starts wins the registry reservation; the loser rejects
// synchronously without touching the store.
func (s *warmupService) Start(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupService.Start")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, domainAccountID)

	s.mu.Lock()
	if _, exists := s.orchestrators[domainAccountID]; exists {
		s.mu.Unlock()
		return nil, customerrors.ErrAlreadyRunning
	}
	s.orchestrators[domainAccountID] = nil
	s.mu.Unlock()

	session, orch, event, err := s.resolveStart(ctx, domainAccountID)
	if err != nil {
		s.deregister(domainAccountID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.mu.Lock()
	s.orchestrators[domainAccountID] = orch
	s.mu.Unlock()

	s.publisher.PublishSessionEvent(ctx, event, session)
	go orch.run()

	return session, nil
}

// resolveStart loads the account and leads, then resolves the initial
// session row: resume-with-appended-leads, resume-from-paused, or a fresh
// create-or-reset.
func (s *warmupService) resolveStart(ctx context.Context, domainAccountID string) (*models.WarmupSession, *orchestrator, string, error) {
	domain, err := s.domains.GetByID(ctx, domainAccountID)
	if err != nil {
		return nil, nil, "", err
	}
	if domain == nil {
		return nil, nil, "", customerrors.ErrDomainAccountNotFound
	}

	leads, err := s.leadsRepo.List(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if len(leads) == 0 {
		return nil, nil, "", customerrors.ErrNoLeads
	}

	session, event, err := s.resolveSession(ctx, domainAccountID, len(leads))
	if err != nil {
		return nil, nil, "", err
	}

	if err := s.domains.UpdateStatus(ctx, domainAccountID, enum.AccountRunning); err != nil {
		return nil, nil, "", err
	}

	orch := newOrchestrator(
		domain, leads, session,
		s.sessions, s.mailLog, s.domains,
		s.sender, s.subscriber, s.textgen, s.publisher,
		s.cfg, s.deregister,
	)
	return session, orch, event, nil
}

func (s *warmupService) resolveSession(ctx context.Context, domainAccountID string, leadCount int) (*models.WarmupSession, string, error) {
	completed, err := s.sessions.GetCompletedToday(ctx, domainAccountID)
	if err != nil {
		return nil, "", err
	}
	if completed != nil {
		if leadCount > completed.CurrentLead {
			// Leads were appended after completion: reuse the row from
			// its previous index with completed_at and error cleared.
			empty := ""
			session, err := s.sessions.UpdateStatus(ctx, completed.ID, enum.SessionSending, &interfaces.SessionUpdate{
				ErrorMessage: &empty,
			})
			if err != nil {
				return nil, "", err
			}
			return session, events.SessionEventResumed, nil
		}
		return nil, "", customerrors.ErrCompletedToday
	}

	active, err := s.sessions.GetActiveToday(ctx, domainAccountID)
	if err != nil {
		return nil, "", err
	}
	if active != nil {
		if active.Status == enum.SessionPaused {
			session, err := s.sessions.UpdateStatus(ctx, active.ID, enum.SessionSending, nil)
			if err != nil {
				return nil, "", err
			}
			return session, events.SessionEventResumed, nil
		}
		return nil, "", fmt.Errorf("%w: session already exists with status %s", customerrors.ErrAlreadyRunning, active.Status)
	}

	session, err := s.sessions.CreateOrReset(ctx, domainAccountID)
	if err != nil {
		return nil, "", err
	}
	return session, events.SessionEventStarted, nil
}

// Pause suspends the live orchestrator and persists the paused outcome.
// Pausing an already-paused session is a no-op returning the stored row.
func (s *warmupService) Pause(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupService.Pause")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, domainAccountID)

	orch := s.lookup(domainAccountID)
	if orch == nil {
		// Idempotent pause: an already-paused row is returned unchanged.
		active, err := s.sessions.GetActiveToday(ctx, domainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if active != nil && active.Status == enum.SessionPaused {
			return active, nil
		}
		return nil, customerrors.ErrNoActiveOrchestra
	}

	orch.pause()
	<-orch.done
	s.deregister(domainAccountID)

	// The run loop may have reached a terminal state before observing the
	// pause; never move a terminal row back to paused.
	if snapshot := orch.sessionSnapshot(); snapshot.Status.IsTerminal() {
		return snapshot, nil
	}

	session, err := s.sessions.UpdateStatus(ctx, orch.sessionID(), enum.SessionPaused, nil)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := s.domains.UpdateStatus(ctx, domainAccountID, enum.AccountPaused); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.publisher.PublishSessionEvent(ctx, events.SessionEventPaused, session)
	return session, nil
}

// Resume is an alias for Start; the paused branch of session resolution
// picks up the stored index.
func (s *warmupService) Resume(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	return s.Start(ctx, domainAccountID)
}

// Stop force-fails the session. Without a live orchestrator it still
// repairs today's non-terminal row; with nothing to stop it is a no-op.
func (s *warmupService) Stop(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupService.Stop")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, domainAccountID)

	orch := s.lookup(domainAccountID)

	var sessionID string
	if orch != nil {
		orch.stop()
		<-orch.done
		s.deregister(domainAccountID)
		if snapshot := orch.sessionSnapshot(); snapshot.Status.IsTerminal() {
			return snapshot, nil
		}
		sessionID = orch.sessionID()
	} else {
		active, err := s.sessions.GetActiveToday(ctx, domainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if active == nil {
			return nil, nil
		}
		sessionID = active.ID
	}

	message := stoppedByUserMessage
	session, err := s.sessions.UpdateStatus(ctx, sessionID, enum.SessionFailed, &interfaces.SessionUpdate{
		ErrorMessage: &message,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := s.domains.UpdateStatus(ctx, domainAccountID, enum.AccountIdle); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.publisher.PublishSessionEvent(ctx, events.SessionEventStopped, session)
	return session, nil
}

// Status reports the live progress view plus today's session row.
func (s *warmupService) Status(ctx context.Context, domainAccountID string) (*interfaces.WarmupStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupService.Status")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, domainAccountID)

	domain, err := s.domains.GetByID(ctx, domainAccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if domain == nil {
		return nil, customerrors.ErrDomainAccountNotFound
	}

	leads, err := s.leadsRepo.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	status := &interfaces.WarmupStatus{}

	if orch := s.lookup(domainAccountID); orch != nil {
		index, total, paused := orch.snapshot()
		status.Active = &interfaces.ActiveWarmup{
			CurrentLeadIndex: index,
			TotalLeads:       total,
			IsPaused:         paused,
		}
	}

	active, err := s.sessions.GetActiveToday(ctx, domainAccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if active != nil {
		status.Session = active
		return status, nil
	}

	completed, err := s.sessions.GetCompletedToday(ctx, domainAccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	status.Session = completed
	// A completed row with leads appended afterwards signals "restart
	// available" rather than "done for today".
	status.CompletedToday = completed != nil && completed.CurrentLead >= len(leads)

	return status, nil
}

// Shutdown pauses every live orchestrator concurrently. Paused rows are
// re-startable through the normal start path.
func (s *warmupService) Shutdown(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "warmupService.Shutdown")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	s.mu.Lock()
	ids := make([]string, 0, len(s.orchestrators))
	for id, orch := range s.orchestrators {
		if orch != nil {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		domainAccountID := id
		group.Go(func() error {
			_, err := s.Pause(groupCtx, domainAccountID)
			if err != nil && !errors.Is(err, customerrors.ErrNoActiveOrchestra) {
				s.log.Errorf("Failed to pause warmup for %s on shutdown: %v", domainAccountID, err)
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

func (s *warmupService) lookup(domainAccountID string) *orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orchestrators[domainAccountID]
}

func (s *warmupService) deregister(domainAccountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orchestrators, domainAccountID)
}
