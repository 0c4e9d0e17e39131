package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/interfaces"
	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/models"
	"github.com/inboxlab/warmstack/internal/tracing"
)

const (
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultPollInterval = 30 * time.Second

	// initialScanDelay closes the race between INBOX open and entering
	// push mode: a message arriving in that window is picked up by an
	// early rescan.
	initialScanDelay = 2 * time.Second

	idleLogoutTimeout    = 25 * time.Minute
	maxReconnectAttempts = 5
	reconnectBackoffStep = 5 * time.Second
)

// errWaitBudget signals that the subscription's wait budget elapsed.
var errWaitBudget = errors.New("wait budget exceeded")

type imapSubscriber struct {
	waitTimeout  time.Duration
	pollInterval time.Duration
}

func NewIMAPSubscriber(waitTimeout, pollInterval time.Duration) interfaces.MailboxSubscriber {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &imapSubscriber{
		waitTimeout:  waitTimeout,
		pollInterval: pollInterval,
	}
}

// Subscribe opens a persistent INBOX session and streams matching UNSEEN
// messages as events. Delivery is at-least-once; the consumer tolerates
// duplicates and disconnects once satisfied.
func (s *imapSubscriber) Subscribe(ctx context.Context, creds models.MailboxCredentials, opts interfaces.SubscribeOptions) (interfaces.Subscription, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapSubscriber.Subscribe")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("imap_server", creds.ImapServer)
	span.LogKV("mailbox", creds.EmailAddress)
	span.LogKV("from_filter", opts.FromFilter)

	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = s.waitTimeout
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		creds:        creds,
		opts:         opts,
		waitTimeout:  waitTimeout,
		pollInterval: s.pollInterval,
		events:       make(chan interfaces.MessageEvent, 16),
		ctx:          subCtx,
		cancel:       cancel,
	}

	go sub.run()

	return sub, nil
}

type subscription struct {
	creds        models.MailboxCredentials
	opts         interfaces.SubscribeOptions
	waitTimeout  time.Duration
	pollInterval time.Duration

	events chan interfaces.MessageEvent

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *subscription) Events() <-chan interfaces.MessageEvent {
	return s.events
}

// Disconnect is idempotent. It releases the socket and cancels all pending
// timers owned by the run loop; the events channel closes once the loop
// observes the cancellation.
func (s *subscription) Disconnect() {
	s.cancel()
}

// run owns the whole subscription lifecycle in one goroutine: connect,
// monitor, reconnect with linear backoff, and the wait-budget deadline.
// Being the only sender keeps event ordering and channel closure trivial.
func (s *subscription) run() {
	defer close(s.events)

	deadline := time.NewTimer(s.waitTimeout)
	defer deadline.Stop()

	attempt := 0
	for {
		if s.ctx.Err() != nil {
			return
		}

		c, err := s.connect()
		if err != nil {
			log.Printf("[%s] IMAP connection error: %v", s.creds.EmailAddress, err)
			attempt++
			if attempt >= maxReconnectAttempts {
				log.Printf("[%s] IMAP reconnect attempts exhausted", s.creds.EmailAddress)
				s.fireTimeout()
				return
			}
			if !s.sleepBackoff(attempt, deadline) {
				return
			}
			continue
		}

		err = s.monitor(c, deadline)

		c.Timeout = 5 * time.Second
		_ = c.Logout()

		if errors.Is(err, errWaitBudget) {
			s.fireTimeout()
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		// Transport error, remote bye or closed connection: reconnect.
		log.Printf("[%s] IMAP session ended, reconnecting: %v", s.creds.EmailAddress, err)
		attempt++
		if attempt >= maxReconnectAttempts {
			log.Printf("[%s] IMAP reconnect attempts exhausted", s.creds.EmailAddress)
			s.fireTimeout()
			return
		}
		if !s.sleepBackoff(attempt, deadline) {
			return
		}
	}
}

// sleepBackoff waits 5s x attempt. Returns false when the subscription was
// disconnected or the wait budget elapsed while sleeping.
func (s *subscription) sleepBackoff(attempt int, deadline *time.Timer) bool {
	backoff := time.Duration(attempt) * reconnectBackoffStep
	select {
	case <-time.After(backoff):
		return true
	case <-deadline.C:
		s.fireTimeout()
		return false
	case <-s.ctx.Done():
		return false
	}
}

// fireTimeout emits the single terminal timeout event. run returns right
// after, so it can fire at most once per subscription lifetime.
func (s *subscription) fireTimeout() {
	select {
	case s.events <- interfaces.MessageEvent{Timeout: true}:
	case <-s.ctx.Done():
	}
}

func (s *subscription) connect() (*client.Client, error) {
	serverAddr := fmt.Sprintf("%s:%d", s.creds.ImapServer, s.creds.ImapPort)

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error

	if s.creds.ImapSecurity == enum.EmailSecurityNone {
		c, err = client.DialWithDialer(dialer, serverAddr)
	} else {
		tlsConfig := &tls.Config{
			ServerName: s.creds.ImapServer,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}

	c.Timeout = 30 * time.Second
	if err := c.Login(s.creds.ImapUsername, s.creds.ImapPassword); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login error: %w", err)
	}
	c.Timeout = 0

	return c, nil
}

// monitor watches the INBOX on one connection: an immediate UNSEEN scan, a
// rescan shortly after open, server push via IDLE where supported, and a
// fallback periodic scan. Returns errWaitBudget when the deadline fires,
// ctx.Err() on disconnect, and the transport error otherwise.
func (s *subscription) monitor(c *client.Client, deadline *time.Timer) error {
	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("error selecting INBOX: %w", err)
	}

	if err := s.scan(c); err != nil {
		return err
	}

	idleSupported, err := c.Support("IDLE")
	if err != nil {
		log.Printf("[%s] Error checking IDLE support: %v", s.creds.EmailAddress, err)
	}

	updates := make(chan client.Update, 100)
	c.Updates = updates
	defer func() { c.Updates = nil }()

	initialRescan := time.NewTimer(initialScanDelay)
	defer initialRescan.Stop()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		var stop chan struct{}
		var idleDone chan error

		if idleSupported {
			stop = make(chan struct{})
			idleDone = make(chan error, 1)
			go func() {
				idleDone <- c.Idle(stop, &client.IdleOptions{
					LogoutTimeout: idleLogoutTimeout,
				})
			}()
		}

		rescan := false
		var monitorErr error

		select {
		case <-initialRescan.C:
			rescan = true
		case <-ticker.C:
			rescan = true
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				rescan = true
			}
		case err := <-idleDone:
			idleDone = nil
			if err != nil {
				monitorErr = fmt.Errorf("IDLE error: %w", err)
			} else {
				monitorErr = errors.New("IDLE terminated by server")
			}
		case <-deadline.C:
			monitorErr = errWaitBudget
		case <-s.ctx.Done():
			monitorErr = s.ctx.Err()
		}

		if idleDone != nil {
			close(stop)
			if err := <-idleDone; err != nil && monitorErr == nil {
				monitorErr = fmt.Errorf("IDLE error: %w", err)
			}
		}

		if monitorErr != nil {
			return monitorErr
		}

		if rescan {
			if err := s.scan(c); err != nil {
				return err
			}
		}
	}
}

// scan searches UNSEEN messages, optionally narrowed by a server-side FROM
// predicate, fetches them and delivers each parsed message. Fetching BODY[]
// without PEEK marks the messages seen, which keeps subsequent scans clean.
func (s *subscription) scan(c *client.Client) error {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if s.opts.FromFilter != "" {
		criteria.Header.Add("From", s.opts.FromFilter)
	}

	c.Timeout = 30 * time.Second
	uids, err := c.UidSearch(criteria)
	c.Timeout = 0
	if err != nil {
		return fmt.Errorf("error searching for new messages: %w", err)
	}

	if len(uids) == 0 {
		return nil
	}

	log.Printf("[%s] Found %d new message(s)", s.creds.EmailAddress, len(uids))

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	c.Timeout = 60 * time.Second
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	for msg := range messages {
		incoming, err := parseMessage(msg, section)
		if err != nil {
			// Drop only this message; the rest of the batch still flows.
			log.Printf("[%s] Failed to parse message UID %d: %v", s.creds.EmailAddress, msg.Uid, err)
			continue
		}

		select {
		case s.events <- interfaces.MessageEvent{Message: incoming}:
		case <-s.ctx.Done():
		}
	}

	c.Timeout = 0

	if err := <-done; err != nil {
		return fmt.Errorf("error fetching messages: %w", err)
	}

	return nil
}
