package chat

import "errors"

var (
	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrNotConfigured is returned when the upstream credentials are missing.
	ErrNotConfigured = errors.New("server configuration error")
)

// ErrorResponse is the JSON error envelope returned to clients.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
