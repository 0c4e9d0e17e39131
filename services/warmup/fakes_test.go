package warmup

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/utils"
)

// In-memory collaborators emulating the store and transport contracts, so
// the orchestration scenarios run without a database or live mailboxes.

type fakeSessionRepo struct {
	mu   sync.Mutex
	rows map[string]*models.WarmupSession
	seq  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: make(map[string]*models.WarmupSession)}
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id string) (*models.WarmupSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(row), nil
}

func (f *fakeSessionRepo) GetActiveToday(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.DomainAccountID == domainAccountID && row.SessionDate == utils.Today() && !row.Status.IsTerminal() {
			return cloneSession(row), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) GetCompletedToday(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.DomainAccountID == domainAccountID && row.SessionDate == utils.Today() && row.Status == enum.SessionCompleted {
			return cloneSession(row), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) CreateOrReset(ctx context.Context, domainAccountID string) (*models.WarmupSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := utils.Now()
	for _, row := range f.rows {
		if row.DomainAccountID == domainAccountID && row.SessionDate == utils.Today() {
			row.Status = enum.SessionPending
			row.CurrentLead = 0
			row.LastMessageID = ""
			row.ErrorMessage = ""
			row.CompletedAt = nil
			row.StartedAt = &now
			return cloneSession(row), nil
		}
	}

	f.seq++
	row := &models.WarmupSession{
		ID:              fmt.Sprintf("wses_test_%d", f.seq),
		DomainAccountID: domainAccountID,
		SessionDate:     utils.Today(),
		Status:          enum.SessionPending,
		StartedAt:       &now,
	}
	f.rows[row.ID] = row
	return cloneSession(row), nil
}

func (f *fakeSessionRepo) UpdateStatus(ctx context.Context, id string, status enum.SessionStatus, update *interfaces.SessionUpdate) (*models.WarmupSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[id]
	if !ok {
		return nil, customerrors.ErrSessionNotFound
	}

	row.Status = status
	if update != nil {
		if update.CurrentLead != nil {
			row.CurrentLead = *update.CurrentLead
		}
		if update.LastMessageID != nil {
			row.LastMessageID = *update.LastMessageID
		}
		if update.ErrorMessage != nil {
			row.ErrorMessage = *update.ErrorMessage
		}
		row.CompletedAt = update.CompletedAt
	}
	return cloneSession(row), nil
}

func (f *fakeSessionRepo) List(ctx context.Context, domainAccountID string) ([]*models.WarmupSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WarmupSession
	for _, row := range f.rows {
		if domainAccountID == "" || row.DomainAccountID == domainAccountID {
			out = append(out, cloneSession(row))
		}
	}
	return out, nil
}

func cloneSession(row *models.WarmupSession) *models.WarmupSession {
	copied := *row
	return &copied
}

type fakeMailLogRepo struct {
	mu      sync.Mutex
	entries []*models.MailLog
	seq     int
}

func (f *fakeMailLogRepo) Create(ctx context.Context, entry *models.MailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("mlog_test_%d", f.seq)
	}
	copied := *entry
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeMailLogRepo) GetBySession(ctx context.Context, sessionID string) ([]*models.MailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.MailLog
	for _, entry := range f.entries {
		if entry.SessionID != nil && *entry.SessionID == sessionID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMailLogRepo) GetByMessageID(ctx context.Context, messageID string) (*models.MailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	normalized := utils.NormalizeMessageID(messageID)
	for _, entry := range f.entries {
		if utils.NormalizeMessageID(entry.MessageID) == normalized {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeMailLogRepo) GetRecent(ctx context.Context, limit int) ([]*models.MailLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	var out []*models.MailLog
	for i := len(f.entries) - 1; i >= len(f.entries)-limit; i-- {
		copied := *f.entries[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeMailLogRepo) all() []*models.MailLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.MailLog, len(f.entries))
	copy(out, f.entries)
	return out
}

type fakeDomainRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.DomainAccount
}

func newFakeDomainRepo(accounts ...*models.DomainAccount) *fakeDomainRepo {
	repo := &fakeDomainRepo{accounts: make(map[string]*models.DomainAccount)}
	for _, account := range accounts {
		repo.accounts[account.ID] = account
	}
	return repo
}

func (f *fakeDomainRepo) Create(ctx context.Context, account *models.DomainAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeDomainRepo) GetByID(ctx context.Context, id string) (*models.DomainAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (f *fakeDomainRepo) GetByEmail(ctx context.Context, email string) (*models.DomainAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if utils.SameEmailAddress(account.EmailAddress, email) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeDomainRepo) List(ctx context.Context) ([]*models.DomainAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DomainAccount
	for _, account := range f.accounts {
		copied := *account
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeDomainRepo) ListAutoWarmup(ctx context.Context) ([]*models.DomainAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DomainAccount
	for _, account := range f.accounts {
		if account.AutoWarmup {
			copied := *account
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeDomainRepo) UpdateStatus(ctx context.Context, id string, status enum.AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return customerrors.ErrDomainAccountNotFound
	}
	account.Status = status
	return nil
}

func (f *fakeDomainRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeDomainRepo) status(id string) enum.AccountStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].Status
}

type fakeLeadRepo struct {
	mu    sync.Mutex
	leads []*models.LeadAccount
}

func (f *fakeLeadRepo) Create(ctx context.Context, account *models.LeadAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, account)
	return nil
}

func (f *fakeLeadRepo) GetByID(ctx context.Context, id string) (*models.LeadAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lead := range f.leads {
		if lead.ID == id {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLeadRepo) List(ctx context.Context) ([]*models.LeadAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.LeadAccount, 0, len(f.leads))
	for _, lead := range f.leads {
		copied := *lead
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeLeadRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, lead := range f.leads {
		if lead.ID == id {
			f.leads = append(f.leads[:i], f.leads[i+1:]...)
			return nil
		}
	}
	return nil
}

type sentMail struct {
	from      string
	request   interfaces.SendRequest
	messageID string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeSender) Send(ctx context.Context, creds models.MailboxCredentials, request interfaces.SendRequest) (*interfaces.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return nil, errors.New("smtp connection refused")
	}

	messageID := utils.GenerateMessageID(creds.EmailAddress)
	f.sent = append(f.sent, sentMail{
		from:      creds.EmailAddress,
		request:   request,
		messageID: messageID,
	})
	return &interfaces.SendResult{
		MessageID:          messageID,
		AcceptedRecipients: []string{request.ToAddress},
	}, nil
}

// lastMatching returns the newest message sent from fromAddress to
// toAddress as the recipient would observe it in their inbox.
func (f *fakeSender) lastMatching(fromAddress, toAddress string) *interfaces.IncomingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.sent) - 1; i >= 0; i-- {
		mail := f.sent[i]
		if utils.SameEmailAddress(mail.from, fromAddress) && utils.SameEmailAddress(mail.request.ToAddress, toAddress) {
			return &interfaces.IncomingMessage{
				MessageID:   mail.messageID,
				FromAddress: mail.from,
				ToAddress:   mail.request.ToAddress,
				Subject:     mail.request.Subject,
				Body:        mail.request.Body,
				InReplyTo:   mail.request.InReplyTo,
				Date:        utils.Now(),
			}
		}
	}
	return nil
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSubscription struct {
	events chan interfaces.MessageEvent
	once   sync.Once
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan interfaces.MessageEvent, 4)}
}

func (f *fakeSubscription) Events() <-chan interfaces.MessageEvent { return f.events }

func (f *fakeSubscription) Disconnect() {
	f.once.Do(func() { close(f.events) })
}

func (f *fakeSubscription) push(event interfaces.MessageEvent) {
	f.events <- event
}

// fakeSubscriber echoes the transport: a subscription on mailbox M with a
// FROM filter immediately delivers the newest fakeSender message from that
// address to M. With no matching message it times out; with block set it
// stays silent so pause/stop can interleave.
type fakeSubscriber struct {
	mu      sync.Mutex
	sender  *fakeSender
	count   int
	block   func(creds models.MailboxCredentials, opts interfaces.SubscribeOptions) bool
	timeout func(creds models.MailboxCredentials, opts interfaces.SubscribeOptions) bool
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, creds models.MailboxCredentials, opts interfaces.SubscribeOptions) (interfaces.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.count++
	sub := newFakeSubscription()

	if f.block != nil && f.block(creds, opts) {
		return sub, nil
	}
	if f.timeout != nil && f.timeout(creds, opts) {
		sub.push(interfaces.MessageEvent{Timeout: true})
		return sub, nil
	}

	if message := f.sender.lastMatching(opts.FromFilter, creds.EmailAddress); message != nil {
		sub.push(interfaces.MessageEvent{Message: message})
	} else {
		sub.push(interfaces.MessageEvent{Timeout: true})
	}
	return sub, nil
}

func (f *fakeSubscriber) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakePublisher struct {
	mu            sync.Mutex
	sessionEvents []string
	mailEvents    int
}

func (f *fakePublisher) PublishSessionEvent(ctx context.Context, event string, session *models.WarmupSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionEvents = append(f.sessionEvents, event)
}

func (f *fakePublisher) PublishMailEvent(ctx context.Context, entry *models.MailLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mailEvents++
}

func (f *fakePublisher) Close() error { return nil }
