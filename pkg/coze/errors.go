package coze

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBotID is returned when no bot id is configured.
	ErrMissingBotID = errors.New("coze bot id is not configured")

	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("coze api key is not configured")

	// ErrUnreachable wraps transport failures talking to the upstream.
	ErrUnreachable = errors.New("coze upstream unreachable")
)

// UpstreamError is returned when the upstream answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("coze upstream returned status %d", e.StatusCode)
}
