// Package extract reduces the chat upstream's event stream to a single reply.
//
// The upstream finalizes a reply through one of two shapes. A "tool_response"
// message carries a JSON-encoded string whose "output" field is the reply,
// and an "answer" message carries the reply as plain content. When both are
// present the tool response is authoritative.
package extract

import (
	"encoding/json"

	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// EventMessageCompleted is the event type of a finished assistant message.
const EventMessageCompleted = "conversation.message.completed"

const (
	roleAssistant = "assistant"

	messageTypeToolResponse = "tool_response"
	messageTypeAnswer       = "answer"
)

// Source names where a final reply came from.
type Source string

const (
	SourceToolResponse Source = "tool_response"
	SourceAnswer       Source = "answer"
	SourceMessages     Source = "messages"
	SourceAnswerField  Source = "answer_field"
	SourceDefault      Source = "default"
)

// Outcome classifies what a single Step did with an event.
type Outcome int

const (
	// OutcomeIgnored means the event was well formed but irrelevant.
	OutcomeIgnored Outcome = iota

	// OutcomeToolResponse means the event set the tool response output.
	OutcomeToolResponse

	// OutcomeAnswer means the event set the plain answer.
	OutcomeAnswer

	// OutcomeMalformedData means the event's data was not a JSON object.
	OutcomeMalformedData

	// OutcomeMalformedNested means a tool response's content could not be
	// decoded as JSON.
	OutcomeMalformedNested
)

// Skipped reports whether the outcome represents a dropped, malformed event.
func (o Outcome) Skipped() bool {
	return o == OutcomeMalformedData || o == OutcomeMalformedNested
}

func (o Outcome) String() string {
	switch o {
	case OutcomeToolResponse:
		return "tool_response"
	case OutcomeAnswer:
		return "answer"
	case OutcomeMalformedData:
		return "malformed_data"
	case OutcomeMalformedNested:
		return "malformed_nested"
	default:
		return "ignored"
	}
}

// message is the subset of a message event payload the extractor reads.
// Content is kept raw because its JSON type differs between message types.
type message struct {
	Role    string          `json:"role"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// toolOutput is the decoded content of a tool_response message.
type toolOutput struct {
	Output any `json:"output"`
}

// Accumulator is the state folded over an event sequence. The zero value is
// the initial state. Accumulator is a value type: Step returns a new state and
// never modifies its receiver.
type Accumulator struct {
	ToolResponseOutput *string
	ExtractedAnswer    *string
}

// Step folds a single event into the accumulator.
//
// The first tool response output is kept; later ones are ignored. Plain
// answers are only recorded while no tool response has been seen, and a
// later answer replaces an earlier one, even when it is empty.
func (a Accumulator) Step(ev sse.Event) (Accumulator, Outcome) {
	data := []byte(ev.Data)
	if !json.Valid(data) {
		return a, OutcomeMalformedData
	}

	// Valid JSON that is not a message object, such as the "[DONE]" sentinel.
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return a, OutcomeIgnored
	}

	if msg.Role != roleAssistant || ev.Type != EventMessageCompleted {
		return a, OutcomeIgnored
	}

	if msg.Type == messageTypeToolResponse && hasContent(msg.Content) {
		return a.stepToolResponse(msg.Content)
	}

	if a.ToolResponseOutput == nil && msg.Type == messageTypeAnswer {
		var content string
		if err := json.Unmarshal(msg.Content, &content); err != nil {
			return a, OutcomeIgnored
		}

		a.ExtractedAnswer = &content
		return a, OutcomeAnswer
	}

	return a, OutcomeIgnored
}

func (a Accumulator) stepToolResponse(raw json.RawMessage) (Accumulator, Outcome) {
	// The content of a tool response is itself a JSON document encoded as a
	// string. A bare object is tolerated as well.
	nested := []byte(raw)

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		nested = []byte(encoded)
	}

	var out toolOutput
	if err := json.Unmarshal(nested, &out); err != nil {
		return a, OutcomeMalformedNested
	}

	output, ok := out.Output.(string)
	if !ok || output == "" || a.ToolResponseOutput != nil {
		return a, OutcomeIgnored
	}

	a.ToolResponseOutput = &output
	return a, OutcomeToolResponse
}

// Final resolves the accumulated state to a reply.
func (a Accumulator) Final(defaultReply string) (string, Source) {
	if a.ToolResponseOutput != nil {
		return *a.ToolResponseOutput, SourceToolResponse
	}

	// An empty last answer resolves to the default.
	if a.ExtractedAnswer != nil && *a.ExtractedAnswer != "" {
		return *a.ExtractedAnswer, SourceAnswer
	}

	return defaultReply, SourceDefault
}

// hasContent reports whether a content field was present, not null and not
// an empty string.
func hasContent(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", `""`:
		return false
	}
	return true
}
