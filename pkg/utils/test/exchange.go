package testutils

import (
	"time"

	"github.com/papercomputeco/chatrelay/pkg/exchange"
)

// NewTestExchange creates a successful exchange with the given message,
// created at the given offset from a fixed base time.
func NewTestExchange(message string, offset time.Duration) *exchange.Exchange {
	ex := exchange.New(message)
	ex.Reply = "reply to " + message
	ex.Source = "answer"
	ex.Shape = "events"
	ex.Events = 3
	ex.UpstreamStatus = 200
	ex.DurationMs = 42
	ex.CreatedAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return ex
}

// NewFailedExchange creates an exchange that failed upstream.
func NewFailedExchange(message string, offset time.Duration) *exchange.Exchange {
	ex := NewTestExchange(message, offset)
	ex.Reply = ""
	ex.Source = ""
	ex.Shape = ""
	ex.Events = 0
	ex.UpstreamStatus = 502
	ex.Error = "coze upstream returned status 502"
	return ex
}
