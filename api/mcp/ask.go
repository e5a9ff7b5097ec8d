package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	askToolName    = "ask"
	askDescription = "Send a message to the configured Coze bot and return its final reply. Tool outputs produced by the bot take precedence over its plain answer text."
)

// AskInput represents the input arguments for the MCP ask tool.
type AskInput struct {
	Message string `json:"message" jsonschema:"the message to send to the bot"`
}

// AskOutput is the extracted reply.
type AskOutput struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

// handleAsk answers a message through the chat service.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	reply, err := s.config.Chat.Reply(ctx, input.Message)
	if err != nil {
		s.config.Logger.Warn("mcp ask failed", "error", err)
		return toolError(fmt.Sprintf("Ask failed: %v", err)), AskOutput{}, nil
	}

	output := AskOutput{
		Reply:  reply.Text,
		Source: string(reply.Source),
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: reply.Text},
		},
	}, output, nil
}
