package warmup

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/utils"
	"github.com/inboxlab/warmstack/services/events"
)

const stoppedByUserMessage = "Manually stopped by user"

var (
	// errInterrupted means pause or stop preempted the current step. The
	// facade owns the resulting status write; the loop just unwinds.
	errInterrupted = errors.New("warmup interrupted")

	// errLeadSkipped means the current lead timed out and the index already
	// advanced; the loop continues with the next lead.
	errLeadSkipped = errors.New("lead skipped")
)

// orchestrator drives the warm-up cycle for exactly one domain account.
// All steps run strictly sequentially on the run goroutine; the facade
// interacts only through pause, stop and snapshot.
type orchestrator struct {
	domain  *models.DomainAccount
	leads   []*models.LeadAccount
	session *models.WarmupSession

	sessions   interfaces.WarmupSessionRepository
	mailLog    interfaces.MailLogRepository
	domains    interfaces.DomainAccountRepository
	sender     interfaces.EmailSender
	subscriber interfaces.MailboxSubscriber
	textgen    interfaces.TextGenerator
	publisher  interfaces.EventPublisher
	cfg        *config.WarmupConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	paused      bool
	stopped     bool
	interrupted chan struct{}
	leadSub     interfaces.Subscription
	domainSub   interfaces.Subscription

	// onTerminal deregisters this instance after a self-terminated run
	// (completed or failed). Pause and stop deregister via the facade.
	onTerminal func(domainAccountID string)

	done chan struct{}
}

func newOrchestrator(
	domain *models.DomainAccount,
	leads []*models.LeadAccount,
	session *models.WarmupSession,
	sessions interfaces.WarmupSessionRepository,
	mailLog interfaces.MailLogRepository,
	domains interfaces.DomainAccountRepository,
	sender interfaces.EmailSender,
	subscriber interfaces.MailboxSubscriber,
	textgen interfaces.TextGenerator,
	publisher interfaces.EventPublisher,
	cfg *config.WarmupConfig,
	onTerminal func(domainAccountID string),
) *orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &orchestrator{
		domain:      domain,
		leads:       leads,
		session:     session,
		sessions:    sessions,
		mailLog:     mailLog,
		domains:     domains,
		sender:      sender,
		subscriber:  subscriber,
		textgen:     textgen,
		publisher:   publisher,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		onTerminal:  onTerminal,
		done:        make(chan struct{}),
	}
}

// run is the goroutine body. It owns every session status write except the
// paused/stopped outcomes, which belong to the facade.
func (o *orchestrator) run() {
	defer close(o.done)

	err := o.loop(o.ctx)

	if o.isInterrupted() || errors.Is(err, errInterrupted) {
		return
	}
	if err != nil {
		o.fail(o.ctx, err)
		o.onTerminal(o.domain.ID)
	}
}

func (o *orchestrator) loop(ctx context.Context) error {
	for {
		if o.isInterrupted() {
			return nil
		}

		index := o.currentIndex()
		if index >= len(o.leads) {
			if err := o.complete(ctx); err != nil {
				return err
			}
			o.onTerminal(o.domain.ID)
			return nil
		}

		if err := o.updateSession(ctx, enum.SessionSending, &interfaces.SessionUpdate{CurrentLead: &index}); err != nil {
			return err
		}

		err := o.runLead(ctx, index)
		if errors.Is(err, errLeadSkipped) {
			continue
		}
		if err != nil {
			return err
		}
	}
}

// runLead executes one full round-trip with the lead at index: outbound
// send, lead-side wait, humanised auto-reply, domain-side wait, advance.
func (o *orchestrator) runLead(ctx context.Context, index int) error {
	lead := o.leads[index]

	log.Printf("[%s] Warming up with lead %s (%d/%d)", o.domain.EmailAddress, lead.EmailAddress, index+1, len(o.leads))

	// Compose and send the outbound message.
	outbound, err := o.textgen.Outbound(ctx, o.domain.SenderName, lead.SenderName, o.domain.EmailAddress)
	if err != nil {
		return errors.Wrap(err, "failed to generate outbound email")
	}

	sendResult, err := o.sender.Send(ctx, o.domain.Credentials(), interfaces.SendRequest{
		ToAddress: lead.EmailAddress,
		ToName:    lead.SenderName,
		Subject:   outbound.Subject,
		Body:      outbound.Body,
	})
	if err != nil {
		return errors.Wrap(err, "failed to send outbound email")
	}

	if err := o.appendLog(ctx, &models.MailLog{
		SessionID:   &o.session.ID,
		FromAddress: o.domain.EmailAddress,
		ToAddress:   lead.EmailAddress,
		Subject:     outbound.Subject,
		Body:        outbound.Body,
		MessageID:   sendResult.MessageID,
		Direction:   enum.MailSent,
		LeadIndex:   index,
	}); err != nil {
		return err
	}

	if o.isInterrupted() {
		return errInterrupted
	}

	if err := o.updateSession(ctx, enum.SessionWaitingReply, &interfaces.SessionUpdate{LastMessageID: &sendResult.MessageID}); err != nil {
		return err
	}

	// Wait for the message to land in the lead's inbox.
	incoming, timedOut, err := o.waitForMessage(ctx, lead.Credentials(), o.domain.EmailAddress, true)
	if err != nil {
		return err
	}
	if timedOut {
		return o.skipLead(ctx, index)
	}

	if err := o.appendLog(ctx, &models.MailLog{
		SessionID:   &o.session.ID,
		FromAddress: incoming.FromAddress,
		ToAddress:   lead.EmailAddress,
		Subject:     incoming.Subject,
		Body:        incoming.Body,
		MessageID:   incoming.MessageID,
		InReplyTo:   incoming.InReplyTo,
		Direction:   enum.MailReceived,
		LeadIndex:   index,
	}); err != nil {
		return err
	}

	// Human-like pause before the lead replies.
	if !o.sleep(ctx, o.randomDelay(o.cfg.ReplyDelayMin(), o.cfg.ReplyDelayMax())) {
		return errInterrupted
	}

	// Compose and send the lead's reply back to the domain.
	reply, err := o.textgen.Reply(ctx, lead.SenderName, o.domain.SenderName, incoming.Subject, incoming.Body)
	if err != nil {
		return errors.Wrap(err, "failed to generate reply email")
	}

	replyResult, err := o.sender.Send(ctx, lead.Credentials(), interfaces.SendRequest{
		ToAddress: o.domain.EmailAddress,
		ToName:    o.domain.SenderName,
		Subject:   reply.Subject,
		Body:      reply.Body,
		InReplyTo: incoming.MessageID,
	})
	if err != nil {
		return errors.Wrap(err, "failed to send reply email")
	}

	if err := o.appendLog(ctx, &models.MailLog{
		SessionID:   &o.session.ID,
		FromAddress: lead.EmailAddress,
		ToAddress:   o.domain.EmailAddress,
		Subject:     reply.Subject,
		Body:        reply.Body,
		MessageID:   replyResult.MessageID,
		InReplyTo:   incoming.MessageID,
		Direction:   enum.MailReplied,
		LeadIndex:   index,
	}); err != nil {
		return err
	}

	if o.isInterrupted() {
		return errInterrupted
	}

	// Wait for the reply to land back in the domain's inbox.
	confirmation, timedOut, err := o.waitForMessage(ctx, o.domain.Credentials(), lead.EmailAddress, false)
	if err != nil {
		return err
	}
	if timedOut {
		return o.skipLead(ctx, index)
	}

	if err := o.appendLog(ctx, &models.MailLog{
		SessionID:   &o.session.ID,
		FromAddress: confirmation.FromAddress,
		ToAddress:   o.domain.EmailAddress,
		Subject:     confirmation.Subject,
		Body:        confirmation.Body,
		MessageID:   confirmation.MessageID,
		InReplyTo:   confirmation.InReplyTo,
		Direction:   enum.MailReceived,
		LeadIndex:   index,
	}); err != nil {
		return err
	}

	// Round-trip confirmed: advance to the next lead.
	next := index + 1
	if err := o.updateSession(ctx, enum.SessionSending, &interfaces.SessionUpdate{CurrentLead: &next}); err != nil {
		return err
	}

	if next < len(o.leads) {
		if !o.sleep(ctx, o.randomDelay(o.cfg.MinDelay(), o.cfg.MaxDelay())) {
			return errInterrupted
		}
	}

	return nil
}

// skipLead advances past a lead whose round-trip never confirmed. Skips are
// not retried.
func (o *orchestrator) skipLead(ctx context.Context, index int) error {
	log.Printf("[%s] Wait budget exceeded for lead index %d, skipping", o.domain.EmailAddress, index)

	o.disconnectSubscriptions()

	next := index + 1
	if err := o.updateSession(ctx, enum.SessionSending, &interfaces.SessionUpdate{CurrentLead: &next}); err != nil {
		return err
	}

	if !o.sleep(ctx, o.cfg.SkipDelay()) {
		return errInterrupted
	}

	return errLeadSkipped
}

// waitForMessage arms a subscription on the given mailbox and drains events
// until a message from expectedFrom arrives, the wait budget fires, or the
// orchestrator is interrupted. The subscription is always disconnected
// before returning; a late duplicate delivery finds it gone.
func (o *orchestrator) waitForMessage(ctx context.Context, creds models.MailboxCredentials, expectedFrom string, leadSide bool) (*interfaces.IncomingMessage, bool, error) {
	sub, err := o.subscriber.Subscribe(ctx, creds, interfaces.SubscribeOptions{
		FromFilter:  expectedFrom,
		WaitTimeout: o.cfg.ImapWaitTimeout(),
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to subscribe to mailbox")
	}

	o.registerSubscription(sub, leadSide)
	defer func() {
		sub.Disconnect()
		o.registerSubscription(nil, leadSide)
	}()

	for {
		select {
		case event, ok := <-sub.Events():
			// Disconnect on pause/stop also closes the events channel; the
			// interrupt must win over the resulting pseudo-timeout.
			if o.isInterrupted() {
				return nil, false, errInterrupted
			}
			if !ok || event.Timeout {
				return nil, true, nil
			}
			if event.Message == nil {
				continue
			}
			// The server-side FROM filter is advisory; re-check with
			// normalised equality and ignore mismatches.
			if !utils.SameEmailAddress(event.Message.FromAddress, expectedFrom) {
				continue
			}
			return event.Message, false, nil
		case <-o.interrupted:
			return nil, false, errInterrupted
		case <-ctx.Done():
			return nil, false, errInterrupted
		}
	}
}

func (o *orchestrator) complete(ctx context.Context) error {
	count := len(o.leads)
	now := utils.NowPtr()
	if err := o.updateSession(ctx, enum.SessionCompleted, &interfaces.SessionUpdate{
		CurrentLead: &count,
		CompletedAt: now,
	}); err != nil {
		return err
	}

	if err := o.domains.UpdateStatus(ctx, o.domain.ID, enum.AccountIdle); err != nil {
		log.Printf("[%s] Failed to reset account status after completion: %v", o.domain.EmailAddress, err)
	}

	log.Printf("[%s] Warmup session completed (%d leads)", o.domain.EmailAddress, count)
	o.publisher.PublishSessionEvent(ctx, events.SessionEventCompleted, o.sessionSnapshot())
	return nil
}

func (o *orchestrator) fail(ctx context.Context, cause error) {
	log.Printf("[%s] Warmup session failed: %v", o.domain.EmailAddress, cause)

	o.disconnectSubscriptions()

	message := cause.Error()
	if err := o.updateSession(ctx, enum.SessionFailed, &interfaces.SessionUpdate{ErrorMessage: &message}); err != nil {
		log.Printf("[%s] Failed to persist failure: %v", o.domain.EmailAddress, err)
	}
	if err := o.domains.UpdateStatus(ctx, o.domain.ID, enum.AccountIdle); err != nil {
		log.Printf("[%s] Failed to reset account status after failure: %v", o.domain.EmailAddress, err)
	}

	o.publisher.PublishSessionEvent(ctx, events.SessionEventFailed, o.sessionSnapshot())
}

// pause requests a cooperative stop of the run loop. An in-flight SMTP send
// completes and its mail-log append lands; the next suspension point
// observes the flag and unwinds without further status writes.
func (o *orchestrator) pause() {
	o.mu.Lock()
	if o.paused || o.stopped {
		o.mu.Unlock()
		return
	}
	o.paused = true
	close(o.interrupted)
	o.mu.Unlock()

	o.disconnectSubscriptions()
}

func (o *orchestrator) stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	alreadyInterrupted := o.paused
	o.paused = false
	if !alreadyInterrupted {
		close(o.interrupted)
	}
	o.mu.Unlock()

	o.cancel()
	o.disconnectSubscriptions()
}

func (o *orchestrator) isInterrupted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused || o.stopped
}

// snapshot returns the progress view served by the status endpoint.
func (o *orchestrator) snapshot() (index, total int, paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.CurrentLead, len(o.leads), o.paused
}

func (o *orchestrator) sessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.ID
}

func (o *orchestrator) sessionSnapshot() *models.WarmupSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	copied := *o.session
	return &copied
}

func (o *orchestrator) currentIndex() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.CurrentLead
}

func (o *orchestrator) registerSubscription(sub interfaces.Subscription, leadSide bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if leadSide {
		o.leadSub = sub
	} else {
		o.domainSub = sub
	}
}

func (o *orchestrator) disconnectSubscriptions() {
	o.mu.Lock()
	leadSub, domainSub := o.leadSub, o.domainSub
	o.leadSub, o.domainSub = nil, nil
	o.mu.Unlock()

	if leadSub != nil {
		leadSub.Disconnect()
	}
	if domainSub != nil {
		domainSub.Disconnect()
	}
}

// updateSession writes the new status and refreshes the in-memory row with
// what the store returned. Store failures are fatal for the session.
func (o *orchestrator) updateSession(ctx context.Context, status enum.SessionStatus, update *interfaces.SessionUpdate) error {
	stored, err := o.sessions.UpdateStatus(ctx, o.sessionID(), status, update)
	if err != nil {
		return errors.Wrap(err, "failed to update session")
	}

	o.mu.Lock()
	o.session = stored
	o.mu.Unlock()
	return nil
}

func (o *orchestrator) appendLog(ctx context.Context, entry *models.MailLog) error {
	if err := o.mailLog.Create(ctx, entry); err != nil {
		return errors.Wrap(err, "failed to append mail log")
	}
	o.publisher.PublishMailEvent(ctx, entry)
	return nil
}

// sleep pauses the run loop for d. Returns false when pause, stop or
// context cancellation interrupted the wait.
func (o *orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !o.isInterrupted()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-o.interrupted:
		return false
	case <-ctx.Done():
		return false
	}
}

// randomDelay draws uniformly from the closed interval [min, max].
func (o *orchestrator) randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
