package utils

import "time"

func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}

// Today returns the current calendar day in the server's time zone,
// formatted as YYYY-MM-DD. Warm-up sessions are keyed by this value.
func Today() string {
	return time.Now().Format("2006-01-02")
}
