// Package sse tokenizes the event-tagged text stream returned by the chat
// upstream into discrete events.
//
// The upstream frames its stream as blocks separated by a blank line:
//
//	event: conversation.message.completed
//	data: {"role":"assistant","type":"answer","content":"hi"}
//
// Only the "event:" and "data:" lines of a block are meaningful here. A block
// lacking either one carries no extractable signal and is dropped.
//
// The package offers three views over the same rules: Tokenize for a fully
// buffered payload, Decoder for chunk-at-a-time input, and TeeReader for
// pulling events from an io.Reader while copying the raw bytes elsewhere.
package sse

import "strings"

const (
	typePrefix = "event:"
	dataPrefix = "data:"
)

// Event represents a single parsed event block.
type Event struct {
	// Type is the trimmed remainder of the block's "event:" line.
	Type string

	// Data is the trimmed remainder of the block's "data:" line. For the chat
	// upstream this is a JSON document.
	Data string
}

// parseBlock scans the lines of one event block. When a block repeats an
// "event:" or "data:" line, the last one wins.
func parseBlock(block string) (Event, bool) {
	var ev Event

	for line := range strings.SplitSeq(block, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, typePrefix):
			ev.Type = strings.TrimSpace(trimmed[len(typePrefix):])
		case strings.HasPrefix(trimmed, dataPrefix):
			ev.Data = strings.TrimSpace(trimmed[len(dataPrefix):])
		}
	}

	if ev.Type == "" || ev.Data == "" {
		return Event{}, false
	}

	return ev, true
}

// normalize rewrites CRLF line endings to LF.
func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Tokenize splits a fully buffered payload into its events, in order.
// Tokenize never fails: malformed blocks are omitted.
func Tokenize(payload string) []Event {
	var events []Event

	for block := range strings.SplitSeq(normalize(payload), "\n\n") {
		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}

	return events
}
