// Package exchange defines the record kept for every chat handled by the
// relay.
package exchange

import (
	"time"

	"github.com/google/uuid"
)

// Exchange is one user message and the outcome of answering it.
type Exchange struct {
	ID      string `json:"id"`
	Message string `json:"message"`

	// Reply is empty when the exchange failed.
	Reply string `json:"reply,omitempty"`

	// Source names the extraction rule that produced Reply.
	Source string `json:"source,omitempty"`

	// Shape is how the upstream payload was framed ("events" or "json").
	Shape string `json:"shape,omitempty"`

	Events  int `json:"events"`
	Skipped int `json:"skipped"`

	// UpstreamStatus is the HTTP status of the upstream response, or 0 when
	// the upstream was never reached.
	UpstreamStatus int `json:"upstream_status"`

	// Error describes why the exchange failed. Empty on success.
	Error string `json:"error,omitempty"`

	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// New returns an Exchange for message with a fresh ID and creation time.
func New(message string) *Exchange {
	return &Exchange{
		ID:        uuid.NewString(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Failed reports whether the exchange ended in an error.
func (e *Exchange) Failed() bool {
	return e.Error != ""
}

// SetDuration records d in milliseconds.
func (e *Exchange) SetDuration(d time.Duration) {
	e.DurationMs = d.Milliseconds()
}
