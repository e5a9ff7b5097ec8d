package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// decodeLines parses one JSON record per line.
func decodeLines(buf *bytes.Buffer) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

var _ = Describe("New", func() {
	It("writes info-level text by default", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf))
		log.Info("relay listening", "listen", ":3000")
		log.Debug("hidden")

		Expect(buf.String()).To(ContainSubstring("relay listening"))
		Expect(buf.String()).To(ContainSubstring("listen=:3000"))
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
	})

	It("emits debug records with WithDebug", func() {
		var buf bytes.Buffer
		logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("sending chat message")

		Expect(buf.String()).To(ContainSubstring("sending chat message"))
	})

	It("prefers JSON over pretty output", func() {
		var buf bytes.Buffer
		log := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
		log.Info("chat reply extracted", "source", "tool_response", "events", 3)

		records := decodeLines(&buf)
		Expect(records).To(HaveLen(1))
		Expect(records[0]["msg"]).To(Equal("chat reply extracted"))
		Expect(records[0]["source"]).To(Equal("tool_response"))
		Expect(records[0]["events"]).To(BeNumerically("==", 3))
	})

	It("renders pretty output with the charm handler", func() {
		var buf bytes.Buffer
		logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Warn("chat upstream is not configured")

		Expect(buf.String()).To(ContainSubstring("chat upstream is not configured"))
		Expect(buf.String()).To(ContainSubstring("WARN"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		log := logger.Nop()
		Expect(log.Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})

var _ = Describe("ForExchange", func() {
	It("tags every record with the exchange id", func() {
		var buf bytes.Buffer
		log := logger.ForExchange(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)), "ex-1")
		log.Info("chat reply extracted")
		log.Error("chat upstream failed")

		for _, rec := range decodeLines(&buf) {
			Expect(rec[logger.KeyExchangeID]).To(Equal("ex-1"))
		}
	})
})

var _ = Describe("NewContext and FromContext", func() {
	It("returns the logger carried by the context", func() {
		var buf bytes.Buffer
		scoped := logger.ForExchange(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)), "ex-2")
		ctx := logger.NewContext(context.Background(), scoped)

		logger.FromContext(ctx, logger.Nop()).Info("from service")

		Expect(decodeLines(&buf)[0][logger.KeyExchangeID]).To(Equal("ex-2"))
	})

	It("falls back when the context carries no logger", func() {
		fallback := logger.Nop()
		Expect(logger.FromContext(context.Background(), fallback)).To(BeIdenticalTo(fallback))
	})
})

var _ = Describe("Multi", func() {
	It("writes pretty terminal output and a JSON log file together", func() {
		var terminal, file bytes.Buffer
		log := logger.Multi(
			logger.New(logger.WithWriter(&terminal), logger.WithPretty(true)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true), logger.WithDebug(true)),
		)

		log.Debug("job queued", logger.KeyExchangeID, "ex-3")
		log.Info("exchange stored", logger.KeyExchangeID, "ex-3")

		Expect(terminal.String()).NotTo(ContainSubstring("job queued"))
		Expect(terminal.String()).To(ContainSubstring("exchange stored"))

		records := decodeLines(&file)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["msg"]).To(Equal("job queued"))
		Expect(records[1][logger.KeyExchangeID]).To(Equal("ex-3"))
	})

	It("keeps attributes and groups on every sink", func() {
		var a, b bytes.Buffer
		log := logger.Multi(
			logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
		).With("component", "proxy").WithGroup("upstream")

		log.Info("request failed", "status", 502)

		for _, buf := range []*bytes.Buffer{&a, &b} {
			rec := decodeLines(buf)[0]
			Expect(rec["component"]).To(Equal("proxy"))
			Expect(rec["upstream"]).To(HaveKeyWithValue("status", BeNumerically("==", 502)))
		}
	})

	It("keeps writing to the terminal when the log file fails", func() {
		var terminal bytes.Buffer
		log := logger.Multi(
			logger.New(logger.WithWriter(failingWriter{}), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&terminal)),
		)

		err := log.Handler().Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "still here", 0))

		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(terminal.String()).To(ContainSubstring("still here"))
	})

	It("skips nil loggers", func() {
		var buf bytes.Buffer
		log := logger.Multi(nil, logger.New(logger.WithWriter(&buf)), nil)
		log.Info("single sink")

		Expect(buf.String()).To(ContainSubstring("single sink"))
		Expect(logger.Multi().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})
