package sse

import (
	"bytes"
	"strings"
)

var blockSeparator = []byte("\n\n")

// Decoder is an incremental tokenizer. Chunks are fed as they arrive from the
// network and complete blocks are emitted as soon as their terminating blank
// line is seen. The output of feeding a payload in any number of chunks and
// then calling Flush is identical to Tokenize on the whole payload.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// pending holds normalized bytes that have not yet formed a complete block.
	pending []byte

	// scanFrom is the offset in pending from which the next separator search
	// starts, so that bytes already searched are not scanned again.
	scanFrom int

	// heldCR is set when a chunk ended in '\r'. The carriage return is held
	// back until the next chunk shows whether it begins a CRLF pair.
	heldCR bool
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the decoder and returns the events whose blocks were
// completed by it.
func (d *Decoder) Feed(chunk []byte) []Event {
	if len(chunk) == 0 {
		return nil
	}

	if d.heldCR {
		chunk = append([]byte{'\r'}, chunk...)
		d.heldCR = false
	}

	if chunk[len(chunk)-1] == '\r' {
		chunk = chunk[:len(chunk)-1]
		d.heldCR = true
	}

	// A CRLF pair cannot straddle the previous pending tail: a trailing '\r'
	// is always held back above.
	d.pending = append(d.pending, bytes.ReplaceAll(chunk, []byte("\r\n"), []byte("\n"))...)

	var events []Event
	for {
		idx := bytes.Index(d.pending[d.scanFrom:], blockSeparator)
		if idx < 0 {
			// The final byte may be the first half of a separator.
			d.scanFrom = max(len(d.pending)-1, 0)
			break
		}

		end := d.scanFrom + idx
		if ev, ok := parseBlock(string(d.pending[:end])); ok {
			events = append(events, ev)
		}

		d.pending = d.pending[end+len(blockSeparator):]
		d.scanFrom = 0
	}

	return events
}

// Flush parses whatever remains buffered as a final, unterminated block and
// resets the decoder.
func (d *Decoder) Flush() []Event {
	rest := string(d.pending)
	if d.heldCR {
		rest += "\r"
	}

	d.pending = nil
	d.scanFrom = 0
	d.heldCR = false

	var events []Event
	for block := range strings.SplitSeq(rest, "\n\n") {
		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Buffered reports the number of bytes held for an incomplete block.
func (d *Decoder) Buffered() int {
	n := len(d.pending)
	if d.heldCR {
		n++
	}
	return n
}
