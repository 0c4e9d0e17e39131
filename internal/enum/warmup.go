package enum

type AccountStatus string

const (
	AccountIdle    AccountStatus = "idle"
	AccountRunning AccountStatus = "running"
	AccountPaused  AccountStatus = "paused"
)

func (t AccountStatus) String() string {
	return string(t)
}

type SessionStatus string

const (
	SessionPending      SessionStatus = "pending"
	SessionSending      SessionStatus = "sending"
	SessionWaitingReply SessionStatus = "waiting_reply"
	SessionPaused       SessionStatus = "paused"
	SessionCompleted    SessionStatus = "completed"
	SessionFailed       SessionStatus = "failed"
)

func (t SessionStatus) String() string {
	return string(t)
}

// IsTerminal reports whether no further transitions are allowed
func (t SessionStatus) IsTerminal() bool {
	return t == SessionCompleted || t == SessionFailed
}

type MailDirection string

const (
	MailSent     MailDirection = "sent"
	MailReceived MailDirection = "received"
	MailReplied  MailDirection = "replied"
)

func (t MailDirection) String() string {
	return string(t)
}
