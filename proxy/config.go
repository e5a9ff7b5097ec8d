package proxy

import (
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3001")
	ListenAddr string

	// AuthUpstreamURL is the auth backend that /api/auth/* is forwarded to
	// (e.g., "http://localhost:4000"). Empty disables the pass-through.
	AuthUpstreamURL string

	// CORSOrigins is a comma separated list of allowed browser origins.
	// Defaults to "*".
	CORSOrigins string

	// ExposeErrorDetails includes upstream error details in error responses.
	// Enable it only outside production.
	ExposeErrorDetails bool

	// BotID tags published exchange events.
	BotID string

	// Publisher is an optional event stream publisher for recorded exchanges.
	// If nil, events are not published.
	Publisher eventstream.Publisher
}
