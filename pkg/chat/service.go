// Package chat answers a single user message by calling the chat upstream and
// extracting the final reply from its response.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/extract"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// Upstream is the chat backend the service calls.
type Upstream interface {
	Configured() error
	Chat(ctx context.Context, message string) (*coze.Stream, error)
}

// Reply is the result of a successful chat.
type Reply struct {
	Text           string
	Source         extract.Source
	Shape          extract.Shape
	Events         int
	Skipped        int
	UpstreamStatus int
	Duration       time.Duration
}

// Service turns user messages into replies.
type Service struct {
	upstream  Upstream
	extractor *extract.Extractor
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds the whole upstream exchange, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// NewService creates a new Service.
func NewService(upstream Upstream, extractor *extract.Extractor, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		upstream:  upstream,
		extractor: extractor,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Reply sends message upstream and returns the extracted reply.
//
// A blank message returns ErrEmptyMessage and missing credentials return
// ErrNotConfigured, both without contacting the upstream. Upstream failures
// are returned wrapped, never replaced by the default reply. A response with
// no recognizable answer is not an error: its Reply carries the default text.
func (s *Service) Reply(ctx context.Context, message string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	log := logger.FromContext(ctx, s.logger)

	if err := s.upstream.Configured(); err != nil {
		log.Error("chat upstream is not configured", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()

	stream, err := s.upstream.Chat(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("calling chat upstream: %w", err)
	}
	defer stream.Body.Close()

	res, err := s.extractor.FromReader(stream.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coze.ErrUnreachable, err)
	}

	reply := &Reply{
		Text:           res.Reply,
		Source:         res.Source,
		Shape:          res.Shape,
		Events:         res.Events,
		Skipped:        res.Skipped,
		UpstreamStatus: stream.StatusCode,
		Duration:       time.Since(start),
	}

	log.Info("chat reply extracted",
		"source", reply.Source,
		"shape", reply.Shape,
		"events", reply.Events,
		"skipped", reply.Skipped,
		"duration", reply.Duration,
	)

	return reply, nil
}

// UpstreamStatus returns the upstream HTTP status carried by err, or 0 when
// the upstream never answered.
func UpstreamStatus(err error) int {
	var upstreamErr *coze.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode
	}
	return 0
}
