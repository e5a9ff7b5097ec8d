package mcp_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/api/mcp"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/extract"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/chatrelay/pkg/utils/test"
)

// cannedUpstream answers every chat with the same payload.
type cannedUpstream struct {
	payload string
}

func (u *cannedUpstream) Configured() error { return nil }

func (u *cannedUpstream) Chat(_ context.Context, _ string) (*coze.Stream, error) {
	return &coze.Stream{
		Body:        io.NopCloser(strings.NewReader(u.payload)),
		ContentType: "text/event-stream",
		StatusCode:  200,
	}, nil
}

func connect(ctx context.Context, server *mcp.Server) *sdk.ClientSession {
	serverTransport, clientTransport := sdk.NewInMemoryTransports()

	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = serverSession.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = session.Close() })

	return session
}

func textOf(result *sdk.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*sdk.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		server *mcp.Server
		driver *inmemory.Driver
		svc    *chat.Service
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		log := logger.Nop()
		driver = inmemory.NewDriver()
		upstream := &cannedUpstream{
			payload: "event: conversation.message.completed\n" +
				`data: {"type":"answer","content":"hi there"}` + "\n\n",
		}
		svc = chat.NewService(upstream, extract.NewExtractor("", log), log)

		var err error
		server, err = mcp.NewServer(mcp.Config{
			Chat:   svc,
			Driver: driver,
			Logger: log,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when storage driver is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("storage driver is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Driver: driver})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("allows an empty noop server", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		It("lists both tools when a chat service is configured", func() {
			session := connect(ctx, server)

			tools, err := session.ListTools(ctx, &sdk.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())

			names := []string{}
			for _, tool := range tools.Tools {
				names = append(names, tool.Name)
			}
			Expect(names).To(ConsistOf("ask", "recent_exchanges"))
		})

		It("omits ask without a chat service", func() {
			storeOnly, err := mcp.NewServer(mcp.Config{Driver: driver, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			session := connect(ctx, storeOnly)

			tools, err := session.ListTools(ctx, &sdk.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())
			Expect(tools.Tools).To(HaveLen(1))
			Expect(tools.Tools[0].Name).To(Equal("recent_exchanges"))
		})

		It("answers through ask", func() {
			session := connect(ctx, server)

			result, err := session.CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"message": "hello"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(textOf(result)).To(Equal("hi there"))
		})

		It("reports a blank ask message as a tool error", func() {
			session := connect(ctx, server)

			result, err := session.CallTool(ctx, &sdk.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"message": "  "},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring(chat.ErrEmptyMessage.Error()))
		})

		It("lists recent exchanges newest first", func() {
			for i, msg := range []string{"one", "two", "three"} {
				Expect(driver.Put(ctx, testutils.NewTestExchange(msg, time.Duration(i)*time.Minute))).To(Succeed())
			}
			session := connect(ctx, server)

			result, err := session.CallTool(ctx, &sdk.CallToolParams{
				Name:      "recent_exchanges",
				Arguments: map[string]any{"limit": 2},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			var output mcp.RecentExchangesOutput
			Expect(json.Unmarshal([]byte(textOf(result)), &output)).To(Succeed())
			Expect(output.Exchanges).To(HaveLen(2))
			Expect(output.Exchanges[0].Message).To(Equal("three"))
			Expect(output.Exchanges[1].Message).To(Equal("two"))
		})

		It("returns an empty list for an empty store", func() {
			session := connect(ctx, server)

			result, err := session.CallTool(ctx, &sdk.CallToolParams{
				Name:      "recent_exchanges",
				Arguments: map[string]any{},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(textOf(result)).To(MatchJSON(`{"exchanges":[]}`))
		})
	})
})
