package errors

import "github.com/pkg/errors"

var (
	// account errors
	ErrDomainAccountNotFound = errors.New("domain account not found")
	ErrLeadAccountNotFound   = errors.New("lead account not found")
	ErrDuplicateEmail        = errors.New("email address already registered")

	// warmup errors
	ErrSessionNotFound   = errors.New("warmup session not found")
	ErrAlreadyRunning    = errors.New("warmup already running for this account")
	ErrCompletedToday    = errors.New("warmup already completed today")
	ErrNoLeads           = errors.New("no lead accounts configured")
	ErrNoActiveOrchestra = errors.New("no active warmup for this account")
)
