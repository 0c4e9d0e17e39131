package warmup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxlab/warmstack/config"
	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/logger"
	"github.com/inboxlab/warmstack/internal/models"
)

const testDomainID = "dacc_test_domain"

type fakeTextGen struct {
	mu   sync.Mutex
	fail bool
	seq  int
}

func (f *fakeTextGen) Outbound(ctx context.Context, senderName, recipientName, senderAddress string) (*interfaces.GeneratedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("generation API unavailable")
	}
	f.seq++
	return &interfaces.GeneratedEmail{
		Subject: fmt.Sprintf("Quick question %d", f.seq),
		Body:    fmt.Sprintf("Hi %s, hope the week is treating you well. %s", recipientName, senderName),
	}, nil
}

func (f *fakeTextGen) Reply(ctx context.Context, replierName, originalSenderName, originalSubject, originalBody string) (*interfaces.GeneratedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("generation API unavailable")
	}
	return &interfaces.GeneratedEmail{
		Subject: "Re: " + originalSubject,
		Body:    fmt.Sprintf("Thanks %s, sounds good. %s", originalSenderName, replierName),
	}, nil
}

type testEnv struct {
	svc        *warmupService
	sessions   *fakeSessionRepo
	mailLog    *fakeMailLogRepo
	domains    *fakeDomainRepo
	leads      *fakeLeadRepo
	sender     *fakeSender
	subscriber *fakeSubscriber
	textgen    *fakeTextGen
	publisher  *fakePublisher
}

func newTestEnv(t *testing.T, leadCount int) *testEnv {
	t.Helper()

	domain := &models.DomainAccount{
		ID:           testDomainID,
		SenderName:   "Nora Quinn",
		EmailAddress: "nora@warmdomain.io",
		Status:       enum.AccountIdle,
	}

	leads := &fakeLeadRepo{}
	for i := 0; i < leadCount; i++ {
		leads.leads = append(leads.leads, &models.LeadAccount{
			ID:           fmt.Sprintf("lead_test_%d", i+1),
			SenderName:   fmt.Sprintf("Lead %d", i+1),
			EmailAddress: fmt.Sprintf("lead%d@responder.io", i+1),
		})
	}

	sender := &fakeSender{}
	env := &testEnv{
		sessions:   newFakeSessionRepo(),
		mailLog:    &fakeMailLogRepo{},
		domains:    newFakeDomainRepo(domain),
		leads:      leads,
		sender:     sender,
		subscriber: &fakeSubscriber{sender: sender},
		textgen:    &fakeTextGen{},
		publisher:  &fakePublisher{},
	}

	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	env.svc = NewWarmupService(
		env.sessions,
		env.mailLog,
		env.domains,
		env.leads,
		env.sender,
		env.subscriber,
		env.textgen,
		env.publisher,
		&config.WarmupConfig{},
		appLogger,
	).(*warmupService)

	return env
}

func (e *testEnv) waitTerminal(t *testing.T, sessionID string) *models.WarmupSession {
	t.Helper()
	require.Eventually(t, func() bool {
		row, err := e.sessions.GetByID(context.Background(), sessionID)
		return err == nil && row != nil && row.Status.IsTerminal()
	}, 3*time.Second, 5*time.Millisecond)

	row, err := e.sessions.GetByID(context.Background(), sessionID)
	require.NoError(t, err)
	return row
}

func (e *testEnv) registrySize() int {
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()
	return len(e.svc.orchestrators)
}

// awaitSettled waits for the run goroutine to finish its post-terminal
// cleanup (deregistration and account status reset).
func (e *testEnv) awaitSettled(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.registrySize() == 0 && e.domains.status(testDomainID) != enum.AccountRunning
	}, 3*time.Second, 5*time.Millisecond)
}

func (e *testEnv) setBlock(block func(models.MailboxCredentials, interfaces.SubscribeOptions) bool) {
	e.subscriber.mu.Lock()
	defer e.subscriber.mu.Unlock()
	e.subscriber.block = block
}

func blockAll(models.MailboxCredentials, interfaces.SubscribeOptions) bool { return true }

func TestWarmupHappyPathTwoLeads(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	session, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)
	require.NotNil(t, session)

	final := env.waitTerminal(t, session.ID)
	env.awaitSettled(t)
	assert.Equal(t, enum.SessionCompleted, final.Status)
	assert.Equal(t, 2, final.CurrentLead)
	require.NotNil(t, final.CompletedAt)
	assert.Empty(t, final.ErrorMessage)
	assert.Equal(t, enum.AccountIdle, env.domains.status(testDomainID))

	entries := env.mailLog.all()
	require.Len(t, entries, 8)

	wantDirections := []enum.MailDirection{
		enum.MailSent, enum.MailReceived, enum.MailReplied, enum.MailReceived,
		enum.MailSent, enum.MailReceived, enum.MailReplied, enum.MailReceived,
	}
	wantIndexes := []int{0, 0, 0, 0, 1, 1, 1, 1}
	for i, entry := range entries {
		assert.Equal(t, wantDirections[i], entry.Direction, "entry %d", i)
		assert.Equal(t, wantIndexes[i], entry.LeadIndex, "entry %d", i)
	}

	// Every reply threads back to the outbound that opened the exchange.
	for _, entry := range entries {
		if entry.Direction != enum.MailReplied {
			continue
		}
		original, err := env.mailLog.GetByMessageID(ctx, entry.InReplyTo)
		require.NoError(t, err)
		require.NotNil(t, original)
		assert.Equal(t, enum.MailSent, original.Direction)
	}

	recent, err := env.mailLog.GetRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, entries[7].ID, recent[0].ID, "newest first")
}

func TestWarmupLeadNeverReceives(t *testing.T) {
	env := newTestEnv(t, 1)
	env.subscriber.timeout = func(models.MailboxCredentials, interfaces.SubscribeOptions) bool { return true }

	session, err := env.svc.Start(context.Background(), testDomainID)
	require.NoError(t, err)

	final := env.waitTerminal(t, session.ID)
	assert.Equal(t, enum.SessionCompleted, final.Status)
	assert.Equal(t, 1, final.CurrentLead)

	entries := env.mailLog.all()
	require.Len(t, entries, 1)
	assert.Equal(t, enum.MailSent, entries[0].Direction)
}

func TestWarmupPauseMidWaitAndResume(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	// Hold the lead-side wait open so pause lands mid-wait.
	env.setBlock(blockAll)

	session, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.sender.count() >= 1 && env.subscriber.subscribeCount() >= 1
	}, 3*time.Second, 5*time.Millisecond)

	paused, err := env.svc.Pause(ctx, testDomainID)
	require.NoError(t, err)
	assert.Equal(t, enum.SessionPaused, paused.Status)
	assert.Equal(t, 0, paused.CurrentLead)
	assert.Equal(t, enum.AccountPaused, env.domains.status(testDomainID))
	assert.Equal(t, 0, env.registrySize())

	// Pausing again is a no-op on the same row.
	pausedAgain, err := env.svc.Pause(ctx, testDomainID)
	require.NoError(t, err)
	assert.Equal(t, paused.ID, pausedAgain.ID)
	assert.Equal(t, enum.SessionPaused, pausedAgain.Status)

	env.setBlock(nil)

	resumed, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resumed.ID)

	final := env.waitTerminal(t, session.ID)
	env.awaitSettled(t)
	assert.Equal(t, enum.SessionCompleted, final.Status)
	assert.Equal(t, 2, final.CurrentLead)
	assert.Equal(t, enum.AccountIdle, env.domains.status(testDomainID))
}

func TestWarmupStop(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	env.setBlock(blockAll)

	session, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.sender.count() >= 1
	}, 3*time.Second, 5*time.Millisecond)

	stopped, err := env.svc.Stop(ctx, testDomainID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stopped.ID)
	assert.Equal(t, enum.SessionFailed, stopped.Status)
	assert.Equal(t, "Manually stopped by user", stopped.ErrorMessage)
	assert.Equal(t, enum.AccountIdle, env.domains.status(testDomainID))
	assert.Equal(t, 0, env.registrySize())

	// Stopping again is a no-op returning success.
	again, err := env.svc.Stop(ctx, testDomainID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestWarmupAppendedLeadsRestart(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	session, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)

	first := env.waitTerminal(t, session.ID)
	env.awaitSettled(t)
	require.Equal(t, enum.SessionCompleted, first.Status)
	require.Equal(t, 1, first.CurrentLead)

	// A second start the same day without new leads is rejected.
	_, err = env.svc.Start(ctx, testDomainID)
	require.ErrorIs(t, err, customerrors.ErrCompletedToday)

	require.NoError(t, env.leads.Create(ctx, &models.LeadAccount{
		ID:           "lead_test_2",
		SenderName:   "Lead 2",
		EmailAddress: "lead2@responder.io",
	}))

	resumed, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resumed.ID, "completed row is reused")
	assert.Nil(t, resumed.CompletedAt, "completed_at cleared on resume")
	assert.Equal(t, 1, resumed.CurrentLead, "index survives the resume")

	final := env.waitTerminal(t, session.ID)
	assert.Equal(t, enum.SessionCompleted, final.Status)
	assert.Equal(t, 2, final.CurrentLead)

	entries := env.mailLog.all()
	require.Len(t, entries, 8)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, entries[i].LeadIndex, "first lead's history is preserved")
	}
	for i := 4; i < 8; i++ {
		assert.Equal(t, 1, entries[i].LeadIndex)
	}
}

func TestWarmupConcurrentStart(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	env.setBlock(blockAll)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := env.svc.Start(ctx, testDomainID)
			results <- err
		}()
	}

	first, second := <-results, <-results
	succeeded := 0
	for _, err := range []error{first, second} {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, customerrors.ErrAlreadyRunning)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one start wins")
	assert.Equal(t, 1, env.registrySize())

	_, err := env.svc.Stop(ctx, testDomainID)
	require.NoError(t, err)
}

func TestStartValidation(t *testing.T) {
	t.Run("unknown domain account", func(t *testing.T) {
		env := newTestEnv(t, 1)
		_, err := env.svc.Start(context.Background(), "dacc_missing")
		assert.ErrorIs(t, err, customerrors.ErrDomainAccountNotFound)
	})

	t.Run("no leads", func(t *testing.T) {
		env := newTestEnv(t, 0)
		_, err := env.svc.Start(context.Background(), testDomainID)
		assert.ErrorIs(t, err, customerrors.ErrNoLeads)

		rows, listErr := env.sessions.List(context.Background(), testDomainID)
		require.NoError(t, listErr)
		assert.Empty(t, rows, "no session row created on rejection")
	})
}

func TestPauseWithoutOrchestrator(t *testing.T) {
	env := newTestEnv(t, 1)
	_, err := env.svc.Pause(context.Background(), testDomainID)
	assert.ErrorIs(t, err, customerrors.ErrNoActiveOrchestra)
}

func TestSmtpFailureFailsSession(t *testing.T) {
	env := newTestEnv(t, 1)
	env.sender.fail = true

	session, err := env.svc.Start(context.Background(), testDomainID)
	require.NoError(t, err)

	final := env.waitTerminal(t, session.ID)
	env.awaitSettled(t)
	assert.Equal(t, enum.SessionFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "failed to send outbound email")
	assert.Equal(t, enum.AccountIdle, env.domains.status(testDomainID))
}

func TestWarmupRestartAfterFailureSameDay(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	env.sender.fail = true

	session, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)

	failed := env.waitTerminal(t, session.ID)
	env.awaitSettled(t)
	require.Equal(t, enum.SessionFailed, failed.Status)
	require.NotEmpty(t, failed.ErrorMessage)

	// The next start the same day resets the failed row in place.
	env.sender.setFail(false)
	restarted, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, restarted.ID, "failed row is reset, not replaced")
	assert.Equal(t, session.SessionDate, restarted.SessionDate)
	assert.Equal(t, enum.SessionPending, restarted.Status)
	assert.Equal(t, 0, restarted.CurrentLead)
	assert.Empty(t, restarted.ErrorMessage)
	assert.Nil(t, restarted.CompletedAt)

	final := env.waitTerminal(t, session.ID)
	env.awaitSettled(t)
	assert.Equal(t, enum.SessionCompleted, final.Status)
	assert.Equal(t, 1, final.CurrentLead)
	assert.Equal(t, enum.AccountIdle, env.domains.status(testDomainID))
}

func TestTextGenFailureFailsSession(t *testing.T) {
	env := newTestEnv(t, 1)
	env.textgen.fail = true

	session, err := env.svc.Start(context.Background(), testDomainID)
	require.NoError(t, err)

	final := env.waitTerminal(t, session.ID)
	assert.Equal(t, enum.SessionFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "failed to generate outbound email")
}

func TestStatusReporting(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	env.setBlock(blockAll)

	_, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.sender.count() >= 1
	}, 3*time.Second, 5*time.Millisecond)

	status, err := env.svc.Status(ctx, testDomainID)
	require.NoError(t, err)
	require.NotNil(t, status.Active)
	assert.Equal(t, 0, status.Active.CurrentLeadIndex)
	assert.Equal(t, 2, status.Active.TotalLeads)
	assert.False(t, status.Active.IsPaused)
	require.NotNil(t, status.Session)
	assert.False(t, status.CompletedToday)

	// The blocked subscription never delivers; pause tears it down and the
	// restart re-subscribes without the block.
	env.setBlock(nil)
	sessionID := status.Session.ID
	_, err = env.svc.Pause(ctx, testDomainID)
	require.NoError(t, err)
	_, err = env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)
	env.waitTerminal(t, sessionID)
	env.awaitSettled(t)

	status, err = env.svc.Status(ctx, testDomainID)
	require.NoError(t, err)
	assert.Nil(t, status.Active)
	require.NotNil(t, status.Session)
	assert.Equal(t, enum.SessionCompleted, status.Session.Status)
	assert.True(t, status.CompletedToday)

	// Appending a lead flips the signal back to "restart available".
	require.NoError(t, env.leads.Create(ctx, &models.LeadAccount{
		ID:           "lead_test_3",
		SenderName:   "Lead 3",
		EmailAddress: "lead3@responder.io",
	}))

	status, err = env.svc.Status(ctx, testDomainID)
	require.NoError(t, err)
	assert.False(t, status.CompletedToday)
}

func TestShutdownPausesLiveSessions(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	env.setBlock(blockAll)

	session, err := env.svc.Start(ctx, testDomainID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.sender.count() >= 1 && env.subscriber.subscribeCount() >= 1
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, env.svc.Shutdown(ctx))
	assert.Equal(t, 0, env.registrySize())

	row, err := env.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.SessionPaused, row.Status)
	assert.Equal(t, enum.AccountPaused, env.domains.status(testDomainID))
}

func TestRandomDelayWithinClosedInterval(t *testing.T) {
	o := &orchestrator{}

	min := 3 * time.Millisecond
	max := 7 * time.Millisecond
	for i := 0; i < 200; i++ {
		d := o.randomDelay(min, max)
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}

	assert.Equal(t, min, o.randomDelay(min, min))
	assert.Equal(t, max, o.randomDelay(max, min))
}
