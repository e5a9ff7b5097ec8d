package extract_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/extract"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

const (
	toolBlock = "event: conversation.message.completed\n" +
		`data: {"role":"assistant","type":"tool_response","content":"{\"output\":\"X\"}"}` + "\n\n"
	answerBlock = "event: conversation.message.completed\n" +
		`data: {"role":"assistant","type":"answer","content":"Y"}` + "\n\n"
	deltaBlock = "event: conversation.message.delta\n" +
		`data: {"role":"assistant","type":"answer","content":"Y-partial"}` + "\n\n"
	malformedBlock = "event: conversation.message.completed\n" +
		"data: {this is not json\n\n"
	doneBlock = "event: done\ndata: \"[DONE]\"\n\n"
)

var _ = Describe("Extractor", func() {
	var (
		ex     *extract.Extractor
		logBuf *bytes.Buffer
	)

	BeforeEach(func() {
		logBuf = &bytes.Buffer{}
		ex = extract.NewExtractor("fallback reply", logger.New(logger.WithWriter(logBuf), logger.WithJSON(true)))
	})

	Describe("NewExtractor", func() {
		It("uses the built-in default reply when none is given", func() {
			Expect(extract.NewExtractor("", nil).DefaultReply()).To(Equal(extract.DefaultReply))
		})
	})

	Describe("FromPayload", func() {
		It("extracts the tool response output", func() {
			res := ex.FromPayload([]byte(toolBlock))
			Expect(res.Reply).To(Equal("X"))
			Expect(res.Source).To(Equal(extract.SourceToolResponse))
			Expect(res.Shape).To(Equal(extract.ShapeEvents))
		})

		It("extracts a plain answer", func() {
			res := ex.FromPayload([]byte(deltaBlock + answerBlock + doneBlock))
			Expect(res.Reply).To(Equal("Y"))
			Expect(res.Source).To(Equal(extract.SourceAnswer))
			Expect(res.Events).To(Equal(3))
		})

		It("prefers the tool response regardless of arrival order", func() {
			Expect(ex.FromPayload([]byte(toolBlock + answerBlock)).Reply).To(Equal("X"))
			Expect(ex.FromPayload([]byte(answerBlock + toolBlock)).Reply).To(Equal("X"))
		})

		It("returns the default when nothing is recognizable", func() {
			res := ex.FromPayload([]byte("event: ping\n\n" + deltaBlock + doneBlock))
			Expect(res.Reply).To(Equal("fallback reply"))
			Expect(res.Source).To(Equal(extract.SourceDefault))
		})

		It("returns the default for an empty payload", func() {
			Expect(ex.FromPayload(nil).Reply).To(Equal("fallback reply"))
		})

		It("recovers from a malformed block before a valid one", func() {
			res := ex.FromPayload([]byte(malformedBlock + answerBlock))
			Expect(res.Reply).To(Equal("Y"))
			Expect(res.Skipped).To(Equal(1))
			Expect(logBuf.String()).To(ContainSubstring("skipping event with malformed data"))
		})

		It("recovers from malformed nested tool content", func() {
			bad := "event: conversation.message.completed\n" +
				`data: {"role":"assistant","type":"tool_response","content":"{oops"}` + "\n\n"
			res := ex.FromPayload([]byte(bad + answerBlock))
			Expect(res.Reply).To(Equal("Y"))
			Expect(res.Skipped).To(Equal(1))
			Expect(logBuf.String()).To(ContainSubstring("malformed content"))
		})

		It("yields identical results for CRLF and LF input", func() {
			lf := deltaBlock + malformedBlock + answerBlock + toolBlock
			crlf := strings.ReplaceAll(lf, "\n", "\r\n")
			Expect(ex.FromPayload([]byte(crlf))).To(Equal(ex.FromPayload([]byte(lf))))
		})

		Context("with a buffered JSON document", func() {
			It("uses the top-level answer", func() {
				res := ex.FromPayload([]byte(`{"answer":"Z"}`))
				Expect(res.Reply).To(Equal("Z"))
				Expect(res.Source).To(Equal(extract.SourceAnswerField))
				Expect(res.Shape).To(Equal(extract.ShapeJSON))
			})

			It("uses the last assistant message", func() {
				res := ex.FromPayload([]byte(`{"messages":[{"role":"assistant","content":"A"},{"role":"assistant","content":"B"}]}`))
				Expect(res.Reply).To(Equal("B"))
				Expect(res.Source).To(Equal(extract.SourceMessages))
			})

			It("skips non-assistant and non-string messages", func() {
				res := ex.FromPayload([]byte(`{"messages":[{"role":"assistant","content":"A"},{"role":"assistant","content":{"x":1}},{"role":"user","content":"Q"}],"answer":"Z"}`))
				Expect(res.Reply).To(Equal("A"))
			})

			It("falls back to the answer when messages has no usable entry", func() {
				res := ex.FromPayload([]byte(`{"messages":[{"role":"user","content":"Q"}],"answer":"Z"}`))
				Expect(res.Reply).To(Equal("Z"))
			})

			It("returns the default when neither field is usable", func() {
				res := ex.FromPayload([]byte(`{"messages":"nope","answer":7}`))
				Expect(res.Reply).To(Equal("fallback reply"))
				Expect(res.Shape).To(Equal(extract.ShapeJSON))
			})

			It("returns the default for a JSON array", func() {
				res := ex.FromPayload([]byte(`[1,2,3]`))
				Expect(res.Reply).To(Equal("fallback reply"))
				Expect(res.Shape).To(Equal(extract.ShapeJSON))
			})

			It("reads invalid JSON as event text", func() {
				res := ex.FromPayload([]byte("{garbage\n\n" + answerBlock))
				Expect(res.Reply).To(Equal("Y"))
				Expect(res.Shape).To(Equal(extract.ShapeEvents))
			})
		})
	})

	Describe("FromReader", func() {
		It("matches FromPayload on a chunked stream", func() {
			payload := strings.ReplaceAll(deltaBlock+malformedBlock+answerBlock+toolBlock+doneBlock, "\n", "\r\n")

			res, err := ex.FromReader(iotest.OneByteReader(strings.NewReader(payload)))
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(ex.FromPayload([]byte(payload))))
			Expect(res.Reply).To(Equal("X"))
		})

		It("detects a buffered JSON document after leading whitespace", func() {
			res, err := ex.FromReader(strings.NewReader("\n  {\"answer\":\"Z\"}"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reply).To(Equal("Z"))
			Expect(res.Shape).To(Equal(extract.ShapeJSON))
		})

		It("returns the default for an empty body", func() {
			res, err := ex.FromReader(strings.NewReader(""))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reply).To(Equal("fallback reply"))
		})

		It("returns read errors instead of a default reply", func() {
			src := io.MultiReader(strings.NewReader(answerBlock), iotest.ErrReader(errors.New("unexpected EOF")))

			_, err := ex.FromReader(src)
			Expect(err).To(MatchError(ContainSubstring("unexpected EOF")))
		})
	})

	It("never panics on arbitrary input", func() {
		silent := extract.NewExtractor("", slog.New(slog.DiscardHandler))
		inputs := []string{
			"\x00\x01\x02", "{", "[", "event:\ndata:", "data: {}\n\n", "\r\r\r\n\n",
			"event: conversation.message.completed\ndata: null\n\n",
			"event: conversation.message.completed\ndata: {\"role\":null,\"content\":null}\n\n",
			"event: conversation.message.completed\ndata: {\"role\":\"assistant\",\"type\":\"tool_response\",\"content\":\"null\"}\n\n",
		}

		for _, in := range inputs {
			Expect(func() {
				res := silent.FromPayload([]byte(in))
				Expect(res.Reply).NotTo(BeEmpty())
			}).NotTo(Panic())
		}
	})
})
