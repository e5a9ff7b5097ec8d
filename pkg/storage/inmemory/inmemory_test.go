package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/chatrelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("rejects nil exchanges", func() {
		Expect(inmemory.NewDriver().Put(context.Background(), nil)).NotTo(Succeed())
	})

	It("isolates stored exchanges from later mutation", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()
		ex := testutils.NewTestExchange("hello", 0)
		Expect(driver.Put(ctx, ex)).To(Succeed())

		ex.Reply = "mutated"

		got, err := driver.Get(ctx, ex.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Reply).To(Equal("reply to hello"))
	})
})
