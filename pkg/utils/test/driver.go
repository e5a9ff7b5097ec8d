package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// DescribeDriver registers the behaviour every storage.Driver must share.
// newDriver is called before each spec and must return an empty driver.
func DescribeDriver(newDriver func() storage.Driver) {
	Describe("storage.Driver behaviour", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		It("stores and retrieves an exchange", func() {
			ex := NewTestExchange("hello", 0)
			Expect(driver.Put(ctx, ex)).To(Succeed())

			got, err := driver.Get(ctx, ex.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(ex.ID))
			Expect(got.Message).To(Equal("hello"))
			Expect(got.Reply).To(Equal("reply to hello"))
			Expect(got.Source).To(Equal("answer"))
			Expect(got.Shape).To(Equal("events"))
			Expect(got.Events).To(Equal(3))
			Expect(got.UpstreamStatus).To(Equal(200))
			Expect(got.DurationMs).To(Equal(int64(42)))
			Expect(got.CreatedAt).To(BeTemporally("~", ex.CreatedAt, time.Millisecond))
		})

		It("round trips failed exchanges", func() {
			ex := NewFailedExchange("broken", 0)
			Expect(driver.Put(ctx, ex)).To(Succeed())

			got, err := driver.Get(ctx, ex.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Failed()).To(BeTrue())
			Expect(got.Error).To(Equal(ex.Error))
			Expect(got.Reply).To(BeEmpty())
		})

		It("replaces an exchange stored twice", func() {
			ex := NewTestExchange("hello", 0)
			Expect(driver.Put(ctx, ex)).To(Succeed())

			ex.Reply = "updated"
			Expect(driver.Put(ctx, ex)).To(Succeed())

			got, err := driver.Get(ctx, ex.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Reply).To(Equal("updated"))

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal("missing"))
		})

		It("lists newest first with paging", func() {
			for i, msg := range []string{"first", "second", "third"} {
				Expect(driver.Put(ctx, NewTestExchange(msg, time.Duration(i)*time.Minute))).To(Succeed())
			}

			all, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].Message).To(Equal("third"))
			Expect(all[2].Message).To(Equal("first"))

			page, err := driver.List(ctx, storage.ListOptions{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].Message).To(Equal("second"))

			empty, err := driver.List(ctx, storage.ListOptions{Offset: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(empty).To(BeEmpty())
		})

		It("counts and aggregates exchanges", func() {
			Expect(driver.Put(ctx, NewTestExchange("a", 0))).To(Succeed())
			Expect(driver.Put(ctx, NewTestExchange("b", time.Minute))).To(Succeed())

			tool := NewTestExchange("c", 2*time.Minute)
			tool.Source = "tool_response"
			Expect(driver.Put(ctx, tool)).To(Succeed())
			Expect(driver.Put(ctx, NewFailedExchange("d", 3*time.Minute))).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(4))

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(4))
			Expect(stats.Failed).To(Equal(1))
			Expect(stats.BySource).To(Equal(map[string]int{"answer": 2, "tool_response": 1}))
		})
	})
}
