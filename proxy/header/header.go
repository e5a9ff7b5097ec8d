// Package header filters headers for the relay's auth pass-through.
//
// The relay sits between the browser and the auth backend like so:
//
//	Browser <--> Relay <--> Auth Backend
//
// and each leg negotiates compression, hops, encoding and CORS independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of request headers (browser --> relay --> backend)
// that are not forwarded to the backend.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},
	"Keep-Alive": {},
	"Upgrade":    {},

	// The Host header is rewritten by Go's http.Transport to match the
	// backend URL. The original host travels in X-Forwarded-Host instead.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the response.
	"Accept-Encoding": {},

	// The relay recomputes the body length of the forwarded request.
	"Content-Length": {},
}

// skipResponse is the set of backend response headers (browser <-- relay <-- backend)
// that are not copied back to the browser.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},
	"Keep-Alive": {},

	// fasthttp manages chunked transfer encoding for the browser-facing
	// response independently.
	"Transfer-Encoding": {},

	// The relay always reads a decompressed body (Go's http.Transport strips
	// Content-Encoding after auto-decompression). Fiber's compress middleware
	// sets the correct Content-Encoding when it re-compresses the response.
	"Content-Encoding": {},

	// The backend Content-Length reflects the (possibly compressed) backend
	// body size. Fiber computes the final length.
	"Content-Length": {},

	// CORS is answered by the relay's own middleware. Backend CORS headers
	// would duplicate or contradict it.
	"Access-Control-Allow-Origin":      {},
	"Access-Control-Allow-Credentials": {},
	"Access-Control-Allow-Headers":     {},
	"Access-Control-Allow-Methods":     {},
	"Access-Control-Expose-Headers":    {},
	"Access-Control-Max-Age":           {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the relay should not forward
// to the backend.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := skipRequest[k]; !skip {
			req.Header.Add(k, string(value))
		}
	})
}

// SetForwardedHeaders records the original client address, host and scheme
// on the outgoing request. An existing X-Forwarded-For chain is extended.
func (h *Handler) SetForwardedHeaders(c *fiber.Ctx, req *http.Request) {
	clientIP := c.IP()
	if prior := c.Get(fiber.HeaderXForwardedFor); prior != "" {
		clientIP = prior + ", " + clientIP
	}

	req.Header.Set(fiber.HeaderXForwardedFor, clientIP)
	req.Header.Set(fiber.HeaderXForwardedHost, c.Hostname())
	req.Header.Set(fiber.HeaderXForwardedProto, c.Protocol())
}

// SetClientResponseHeaders copies response headers from the backend
// http.Response to the Fiber context, filtering headers that the relay should
// not forward back down to the browser.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; skip {
			continue
		}

		// Each cookie must stay a separate header line.
		if k == fiber.HeaderSetCookie {
			for _, cookie := range v {
				c.Response().Header.Add(k, cookie)
			}
			continue
		}

		c.Set(k, strings.Join(v, ", "))
	}
}
