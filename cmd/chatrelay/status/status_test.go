package statuscmder

import (
	"bytes"
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/chatrelay/pkg/utils/test"
)

var _ = Describe("NewStatusCmd", func() {
	It("registers its flags", func() {
		cmd := NewStatusCmd()
		Expect(cmd.Use).To(Equal("status"))
		Expect(cmd.Flags().Lookup("api-target")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("recent")).NotTo(BeNil())
	})
})

var _ = Describe("statusCommander", func() {
	var (
		driver *inmemory.Driver
		cmder  *statusCommander
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()

		server, err := api.NewServer(api.Config{ListenAddr: "127.0.0.1:0"}, driver, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = server.RunWithListener(ln) }()
		DeferCleanup(func() { _ = server.Shutdown() })

		out = &bytes.Buffer{}
		cmder = &statusCommander{
			apiTarget: "http://" + ln.Addr().String(),
			recent:    2,
		}
	})

	It("prints totals for an empty store", func() {
		Expect(cmder.run(context.Background(), out)).To(Succeed())
		Expect(out.String()).To(MatchRegexp(`Exchanges:\s+0`))
	})

	It("prints stats and the most recent exchanges", func() {
		ctx := context.Background()
		Expect(driver.Put(ctx, testutils.NewTestExchange("oldest question", 0))).To(Succeed())
		Expect(driver.Put(ctx, testutils.NewTestExchange("middle question", time.Minute))).To(Succeed())
		Expect(driver.Put(ctx, testutils.NewFailedExchange("newest question", 2*time.Minute))).To(Succeed())

		Expect(cmder.run(ctx, out)).To(Succeed())

		Expect(out.String()).To(MatchRegexp(`Exchanges:\s+3`))
		Expect(out.String()).To(MatchRegexp(`Failed:\s+1`))
		Expect(out.String()).To(ContainSubstring("newest question"))
		Expect(out.String()).To(ContainSubstring("middle question"))
		Expect(out.String()).NotTo(ContainSubstring("oldest question"))
		Expect(out.String()).To(ContainSubstring("(42ms)"))
	})

	It("fails when the API server is unreachable", func() {
		cmder.apiTarget = "http://127.0.0.1:1"
		Expect(cmder.run(context.Background(), out)).To(HaveOccurred())
	})
})
