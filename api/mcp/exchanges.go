package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chatrelay/pkg/exchange"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	recentExchangesToolName    = "recent_exchanges"
	recentExchangesDescription = "List the most recent chat exchanges handled by the relay, newest first. Each exchange has the user message, the extracted reply, the extraction source and any upstream error."
)

// RecentExchangesInput represents the input arguments for the MCP
// recent_exchanges tool.
type RecentExchangesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of exchanges to return (default 10)"`
}

// ExchangeSummary is one exchange as reported to MCP clients.
type ExchangeSummary struct {
	ID             string `json:"id"`
	Message        string `json:"message"`
	Reply          string `json:"reply,omitempty"`
	Source         string `json:"source,omitempty"`
	Error          string `json:"error,omitempty"`
	UpstreamStatus int    `json:"upstream_status"`
	CreatedAt      string `json:"created_at"`
}

// RecentExchangesOutput represents the structured output of the tool.
type RecentExchangesOutput struct {
	Exchanges []ExchangeSummary `json:"exchanges"`
}

func summarize(ex *exchange.Exchange) ExchangeSummary {
	return ExchangeSummary{
		ID:             ex.ID,
		Message:        ex.Message,
		Reply:          ex.Reply,
		Source:         ex.Source,
		Error:          ex.Error,
		UpstreamStatus: ex.UpstreamStatus,
		CreatedAt:      ex.CreatedAt.Format(time.RFC3339),
	}
}

const defaultRecentLimit = 10

func (s *Server) handleRecentExchanges(ctx context.Context, _ *mcp.CallToolRequest, input RecentExchangesInput) (*mcp.CallToolResult, RecentExchangesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	exchanges, err := s.config.Driver.List(ctx, storage.ListOptions{Limit: limit})
	if err != nil {
		s.config.Logger.Error("mcp recent_exchanges failed", "error", err)
		return toolError(fmt.Sprintf("Listing exchanges failed: %v", err)), RecentExchangesOutput{}, nil
	}

	output := RecentExchangesOutput{Exchanges: make([]ExchangeSummary, 0, len(exchanges))}
	for _, ex := range exchanges {
		output.Exchanges = append(output.Exchanges, summarize(ex))
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), RecentExchangesOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
