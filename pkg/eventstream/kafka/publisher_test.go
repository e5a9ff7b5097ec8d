package kafka

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/exchange"
)

// recordingWriter captures written messages.
type recordingWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer *recordingWriter
		pub    *Publisher
		event  *eventstream.ExchangeRecordedEvent
	)

	BeforeEach(func() {
		writer = &recordingWriter{}
		pub = newPublisher(writer, Config{Topic: "exchanges"})

		ex := exchange.New("hello")
		ex.Reply = "hi"
		event = eventstream.NewExchangeRecordedEvent(ex, eventstream.EventSource{Service: "chatrelay"})
	})

	Describe("NewPublisher", func() {
		It("requires brokers", func() {
			_, err := NewPublisher(Config{})
			Expect(err).To(MatchError(ErrNoBrokers))
		})

		It("defaults the topic", func() {
			p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.topic).To(Equal(DefaultTopic))

			w, ok := p.writer.(*kafkago.Writer)
			Expect(ok).To(BeTrue())
			Expect(w.Topic).To(Equal(DefaultTopic))
			Expect(p.Close()).To(Succeed())
		})
	})

	Describe("PublishExchange", func() {
		It("writes the event keyed by exchange id", func() {
			Expect(pub.PublishExchange(context.Background(), event)).To(Succeed())
			Expect(writer.messages).To(HaveLen(1))

			msg := writer.messages[0]
			Expect(string(msg.Key)).To(Equal(event.Exchange.ID))
			Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeExchangeRecorded)}))
			Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "schema_version", Value: []byte("1")}))

			var decoded eventstream.ExchangeRecordedEvent
			Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
			Expect(decoded.EventID).To(Equal(event.EventID))
			Expect(decoded.Exchange.Reply).To(Equal("hi"))
		})

		It("rejects nil events", func() {
			Expect(pub.PublishExchange(context.Background(), nil)).To(MatchError(eventstream.ErrNilExchangeEvent))
		})

		It("wraps writer errors", func() {
			writer.err = errors.New("broker unavailable")

			err := pub.PublishExchange(context.Background(), event)
			Expect(err).To(MatchError(ContainSubstring("broker unavailable")))
			Expect(err).To(MatchError(ContainSubstring("exchanges")))
		})
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
