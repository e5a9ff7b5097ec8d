// Package coze is a minimal client for the Coze chat API.
//
// Only the streaming /v3/chat endpoint is supported. The client returns the
// raw response body; turning the event stream into a reply is left to the
// extract package.
package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const (
	// DefaultBaseURL is the public Coze API endpoint.
	DefaultBaseURL = "https://api.coze.cn"

	// DefaultUserID identifies the relay to the upstream when no user id is
	// configured.
	DefaultUserID = "frontend-user-123"

	chatPath = "/v3/chat"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 4 * 1024
)

// Config holds the upstream connection settings.
type Config struct {
	// BaseURL is the API root, without the /v3/chat path.
	BaseURL string

	// BotID is the Coze bot that answers chats.
	BotID string

	// APIKey is sent as a bearer token.
	APIKey string

	// UserID is the user the upstream attributes chats to.
	UserID string

	// AutoSaveHistory asks the upstream to persist the conversation.
	AutoSaveHistory bool

	// HTTPClient is used for requests. Defaults to a client with a 5 minute
	// timeout.
	HTTPClient *http.Client
}

// Validate reports whether the credentials required to call the upstream are
// present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BotID) == "" {
		return ErrMissingBotID
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Client talks to the Coze chat API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Stream is a successful chat response. The caller must close Body.
type Stream struct {
	Body        io.ReadCloser
	ContentType string
	StatusCode  int
}

// NewClient creates a new Client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.UserID == "" {
		config.UserID = DefaultUserID
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// Chats that call tools can take minutes to finish.
			Timeout: 5 * time.Minute,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Configured reports whether the client has the credentials it needs.
func (c *Client) Configured() error {
	return c.config.Validate()
}

// Chat sends message to the configured bot with streaming enabled and returns
// the open response stream.
//
// A non-2xx answer is returned as *UpstreamError. Transport failures wrap
// ErrUnreachable.
func (c *Client) Chat(ctx context.Context, message string) (*Stream, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(ChatRequest{
		BotID:           c.config.BotID,
		UserID:          c.config.UserID,
		Stream:          true,
		AutoSaveHistory: c.config.AutoSaveHistory,
		AdditionalMessages: []AdditionalMessage{
			{Role: "user", Content: message, ContentType: "text"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	url := c.config.BaseURL + chatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("sending chat request to upstream",
		"url", url,
		"bot_id", c.config.BotID,
		"message_preview", utils.Truncate(message, 100),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("upstream returned error",
			"status", resp.StatusCode,
			"body", utils.Truncate(string(raw), 500),
		)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return &Stream{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}
