// Package api provides an HTTP API server for inspecting the exchanges recorded
// by the chat relay.
package api

import "github.com/papercomputeco/chatrelay/pkg/chat"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Chat enables the MCP ask tool. Optional.
	Chat *chat.Service
}
