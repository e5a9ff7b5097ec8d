package proxy

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/utils"
)

// maxRawBackendResponse bounds the raw body echoed back when the auth backend
// misbehaves.
const maxRawBackendResponse = 500

// AuthErrorResponse is returned when the auth backend cannot be used.
type AuthErrorResponse struct {
	Message            string `json:"message"`
	Error              string `json:"error,omitempty"`
	BackendStatus      int    `json:"backend_status,omitempty"`
	RawBackendResponse string `json:"raw_backend_response,omitempty"`
	ContentType        string `json:"content_type,omitempty"`
}

// handleAuth forwards /api/auth/<rest> to <auth upstream>/auth/<rest>,
// keeping the method, query string, body and filtered headers.
func (p *Proxy) handleAuth(c *fiber.Ctx) error {
	if p.config.AuthUpstreamURL == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(AuthErrorResponse{
			Message: "auth backend is not configured",
		})
	}

	targetURL := strings.TrimRight(p.config.AuthUpstreamURL, "/") + strings.TrimPrefix(c.Path(), "/api")
	if query := c.Request().URI().QueryString(); len(query) > 0 {
		targetURL += "?" + string(query)
	}

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), c.Method(), targetURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create auth backend request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(AuthErrorResponse{Message: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)
	p.headerHandler.SetForwardedHeaders(c, httpReq)

	p.logger.Debug("forwarding auth request",
		"method", c.Method(),
		"url", targetURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("auth backend request failed", "error", err)

		resp := AuthErrorResponse{Message: "auth backend request failed"}
		if p.config.ExposeErrorDetails {
			resp.Error = err.Error()
		}
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read auth backend response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(AuthErrorResponse{Message: "failed to read auth backend response"})
	}

	contentType := httpResp.Header.Get(fiber.HeaderContentType)
	if len(respBody) > 0 && !isJSON(contentType) {
		p.logger.Error("auth backend returned a non-JSON response",
			"url", targetURL,
			"status", httpResp.StatusCode,
			"content_type", contentType,
		)
		return c.Status(fiber.StatusBadGateway).JSON(AuthErrorResponse{
			Message:            "auth backend returned a non-JSON response",
			BackendStatus:      httpResp.StatusCode,
			RawBackendResponse: utils.Truncate(string(respBody), maxRawBackendResponse),
			ContentType:        contentType,
		})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	return c.Status(httpResp.StatusCode).Send(respBody)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == fiber.MIMEApplicationJSON || strings.HasSuffix(mediaType, "+json")
}
