// Package eventstream publishes notifications about recorded exchanges to an
// event stream backend.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/exchange"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangeRecorded is emitted after an exchange is persisted.
	EventTypeExchangeRecorded = "chatrelay.exchange.recorded"
)

// ExchangeRecordedEvent is a transport-neutral event payload for a recorded
// exchange.
type ExchangeRecordedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	Exchange      exchange.Exchange `json:"exchange"`
}

// EventSource identifies the relay instance that handled the exchange.
type EventSource struct {
	Service string `json:"service"`
	BotID   string `json:"bot_id,omitempty"`
}

// NewExchangeRecordedEvent wraps ex in a v1 event with a fresh ID.
func NewExchangeRecordedEvent(ex *exchange.Exchange, source EventSource) *ExchangeRecordedEvent {
	return &ExchangeRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeExchangeRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Exchange:      *ex,
	}
}
