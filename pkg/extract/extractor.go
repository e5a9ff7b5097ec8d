package extract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

// DefaultReply is returned when no reply can be extracted from a response.
const DefaultReply = "Sorry, no final reply could be extracted from the AI response."

// logPreviewLen bounds the payload excerpts written to logs.
const logPreviewLen = 200

// Shape describes how an upstream payload was framed.
type Shape string

const (
	ShapeEvents Shape = "events"
	ShapeJSON   Shape = "json"
)

// Result is the outcome of extracting a reply from one upstream payload.
type Result struct {
	// Reply is the final reply. It is never empty unless DefaultReply was
	// configured empty.
	Reply string

	// Source names which rule produced Reply.
	Source Source

	// Shape is how the payload was interpreted.
	Shape Shape

	// Events is the number of events tokenized from the payload.
	Events int

	// Skipped is the number of events dropped for malformed data.
	Skipped int
}

// Extractor reduces upstream payloads to a Result.
type Extractor struct {
	defaultReply string
	logger       *slog.Logger
}

// NewExtractor returns an Extractor that falls back to defaultReply. An empty
// defaultReply selects DefaultReply.
func NewExtractor(defaultReply string, logger *slog.Logger) *Extractor {
	if defaultReply == "" {
		defaultReply = DefaultReply
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Extractor{
		defaultReply: defaultReply,
		logger:       logger,
	}
}

// DefaultReply returns the reply used when nothing could be extracted.
func (e *Extractor) DefaultReply() string {
	return e.defaultReply
}

// FromEvents folds an already tokenized event sequence.
func (e *Extractor) FromEvents(events []sse.Event) *Result {
	f := e.newFold()
	for _, ev := range events {
		f.step(ev)
	}
	return f.result()
}

// FromPayload extracts a reply from a fully buffered payload. A payload that
// is a JSON document rather than event blocks is handled by the buffered JSON
// fallback.
func (e *Extractor) FromPayload(payload []byte) *Result {
	if looksLikeJSON(payload) {
		if res, ok := e.fromJSON(payload); ok {
			return res
		}
	}

	return e.FromEvents(sse.Tokenize(string(payload)))
}

// FromReader extracts a reply from r, decoding event blocks as they arrive.
// Only read errors are returned; malformed content never fails extraction.
func (e *Extractor) FromReader(r io.Reader) (*Result, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading upstream payload: %w", err)
	}

	if first == '{' || first == '[' {
		payload, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("reading upstream payload: %w", err)
		}
		return e.FromPayload(payload), nil
	}

	f := e.newFold()
	tr := sse.NewTeeReader(br, nil)
	for {
		ev, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("reading upstream event stream: %w", err)
		}
		if ev == nil {
			break
		}
		f.step(*ev)
	}

	return f.result(), nil
}

// fold drives an Accumulator over a sequence of events, logging what each
// step did.
type fold struct {
	e       *Extractor
	acc     Accumulator
	events  int
	skipped int
}

func (e *Extractor) newFold() *fold {
	return &fold{e: e}
}

func (f *fold) step(ev sse.Event) {
	f.events++

	next, outcome := f.acc.Step(ev)
	f.acc = next

	switch outcome {
	case OutcomeMalformedData:
		f.skipped++
		f.e.logger.Warn("skipping event with malformed data",
			"event", ev.Type,
			"data", utils.Truncate(ev.Data, logPreviewLen),
		)
	case OutcomeMalformedNested:
		f.skipped++
		f.e.logger.Warn("skipping tool response with malformed content",
			"event", ev.Type,
			"data", utils.Truncate(ev.Data, logPreviewLen),
		)
	case OutcomeToolResponse:
		f.e.logger.Debug("extracted tool response output",
			"preview", utils.Truncate(*f.acc.ToolResponseOutput, logPreviewLen),
		)
	case OutcomeAnswer:
		f.e.logger.Debug("extracted answer",
			"preview", utils.Truncate(*f.acc.ExtractedAnswer, logPreviewLen),
		)
	}
}

func (f *fold) result() *Result {
	reply, source := f.acc.Final(f.e.defaultReply)
	if source == SourceDefault {
		f.e.logger.Warn("no reply found in event stream, using default",
			"events", f.events,
			"skipped", f.skipped,
		)
	}

	return &Result{
		Reply:   reply,
		Source:  source,
		Shape:   ShapeEvents,
		Events:  f.events,
		Skipped: f.skipped,
	}
}

type bufferedMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// fromJSON applies the buffered JSON fallback: the last assistant message
// with string content, else a top-level string "answer". It reports false
// when payload is not valid JSON, in which case the caller reads it as event
// blocks instead.
func (e *Extractor) fromJSON(payload []byte) (*Result, bool) {
	res := &Result{Shape: ShapeJSON}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		if !json.Valid(payload) {
			return nil, false
		}

		e.logger.Warn("buffered response is not a JSON object, using default")
		res.Reply, res.Source = e.defaultReply, SourceDefault
		return res, true
	}

	// Fields of the wrong type are treated as absent.
	var messages []bufferedMessage
	_ = json.Unmarshal(doc["messages"], &messages)

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if content, ok := msg.Content.(string); ok && msg.Role == roleAssistant && content != "" {
			res.Reply, res.Source = content, SourceMessages
			return res, true
		}
	}

	var answer string
	if err := json.Unmarshal(doc["answer"], &answer); err == nil && answer != "" {
		res.Reply, res.Source = answer, SourceAnswerField
		return res, true
	}

	e.logger.Warn("no reply found in buffered response, using default",
		"payload", utils.Truncate(string(payload), logPreviewLen),
	)
	res.Reply, res.Source = e.defaultReply, SourceDefault
	return res, true
}

func looksLikeJSON(payload []byte) bool {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// peekNonSpace discards leading whitespace from br and returns the next byte
// without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}

		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
