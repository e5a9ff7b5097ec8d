package chat_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing/iotest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/extract"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// fakeUpstream serves a canned body or error.
type fakeUpstream struct {
	configErr error
	body      io.Reader
	err       error
	calls     int
}

func (f *fakeUpstream) Configured() error {
	return f.configErr
}

func (f *fakeUpstream) Chat(_ context.Context, _ string) (*coze.Stream, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &coze.Stream{Body: io.NopCloser(f.body), StatusCode: http.StatusOK}, nil
}

const answerStream = "event: conversation.message.completed\n" +
	`data: {"role":"assistant","type":"answer","content":"Hi there"}` + "\n\n" +
	"event: done\ndata: \"[DONE]\"\n\n"

var _ = Describe("Service", func() {
	var (
		upstream *fakeUpstream
		svc      *chat.Service
	)

	BeforeEach(func() {
		upstream = &fakeUpstream{body: strings.NewReader(answerStream)}
		svc = chat.NewService(upstream, extract.NewExtractor("default", logger.Nop()), logger.Nop())
	})

	Describe("Reply", func() {
		It("returns the extracted reply", func() {
			reply, err := svc.Reply(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Hi there"))
			Expect(reply.Source).To(Equal(extract.SourceAnswer))
			Expect(reply.Events).To(Equal(2))
			Expect(reply.UpstreamStatus).To(Equal(http.StatusOK))
		})

		It("returns the default reply when nothing is extractable", func() {
			upstream.body = strings.NewReader("event: done\ndata: \"[DONE]\"\n\n")

			reply, err := svc.Reply(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("default"))
			Expect(reply.Source).To(Equal(extract.SourceDefault))
		})

		It("rejects blank messages before calling upstream", func() {
			_, err := svc.Reply(context.Background(), "  \n\t")
			Expect(err).To(MatchError(chat.ErrEmptyMessage))
			Expect(upstream.calls).To(BeZero())
		})

		It("reports missing configuration before calling upstream", func() {
			upstream.configErr = coze.ErrMissingAPIKey

			_, err := svc.Reply(context.Background(), "hello")
			Expect(err).To(MatchError(chat.ErrNotConfigured))
			Expect(err).To(MatchError(coze.ErrMissingAPIKey))
			Expect(upstream.calls).To(BeZero())
		})

		It("surfaces upstream status errors", func() {
			upstream.err = &coze.UpstreamError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}

			_, err := svc.Reply(context.Background(), "hello")
			Expect(err).To(HaveOccurred())
			Expect(chat.UpstreamStatus(err)).To(Equal(http.StatusTooManyRequests))
		})

		It("surfaces a broken upstream body as unreachable", func() {
			upstream.body = io.MultiReader(strings.NewReader("event: x\n"), iotest.ErrReader(errors.New("reset")))

			_, err := svc.Reply(context.Background(), "hello")
			Expect(err).To(MatchError(coze.ErrUnreachable))
			Expect(chat.UpstreamStatus(err)).To(BeZero())
		})
	})

	Context("against an HTTP upstream", func() {
		var server *httptest.Server

		AfterEach(func() {
			server.Close()
		})

		It("extracts a tool response from a CRLF stream", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				for _, part := range []string{
					"event: conversation.message.completed\r\n",
					`data: {"role":"assistant","type":"tool_response","content":"{\"output\":\"from tool\"}"}` + "\r",
					"\n\r\n",
				} {
					_, _ = io.WriteString(w, part)
					flusher.Flush()
				}
			}))

			client := coze.NewClient(coze.Config{BaseURL: server.URL, BotID: "b", APIKey: "k"}, logger.Nop())
			svc = chat.NewService(client, extract.NewExtractor("", logger.Nop()), logger.Nop())

			reply, err := svc.Reply(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("from tool"))
			Expect(reply.Source).To(Equal(extract.SourceToolResponse))
		})

		It("applies the configured timeout", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))

			client := coze.NewClient(coze.Config{BaseURL: server.URL, BotID: "b", APIKey: "k"}, logger.Nop())
			svc = chat.NewService(client, extract.NewExtractor("", logger.Nop()), logger.Nop(), chat.WithTimeout(50*time.Millisecond))

			_, err := svc.Reply(context.Background(), "hello")
			Expect(err).To(MatchError(coze.ErrUnreachable))
		})
	})
})
