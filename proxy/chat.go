package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/exchange"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/utils"
	"github.com/papercomputeco/chatrelay/proxy/worker"
)

// ChatRequest is the body accepted by the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned by the chat endpoint.
type ChatResponse struct {
	Reply string `json:"reply"`
}

const errFailedReply = "failed to get reply from AI"

// handleChat answers a single chat message. Every log line written while
// answering carries the exchange id that the stored record will have.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		p.logger.Warn("invalid chat request body", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "invalid request body"})
	}

	ex := exchange.New(req.Message)
	log := logger.ForExchange(p.logger, ex.ID)
	ctx := logger.NewContext(c.Context(), log)

	reply, err := p.chat.Reply(ctx, req.Message)
	if err != nil {
		return p.writeChatError(c, log, ex, err, startTime)
	}

	ex.Reply = reply.Text
	ex.Source = string(reply.Source)
	ex.Shape = string(reply.Shape)
	ex.Events = reply.Events
	ex.Skipped = reply.Skipped
	ex.UpstreamStatus = reply.UpstreamStatus
	ex.SetDuration(time.Since(startTime))
	p.workerPool.Enqueue(worker.Job{Exchange: ex})

	log.Debug("returning chat reply",
		"source", reply.Source,
		"reply_preview", utils.Truncate(reply.Text, 100),
	)

	return c.JSON(ChatResponse{Reply: reply.Text})
}

// writeChatError maps a chat service error to its HTTP response. Upstream
// failures are recorded as failed exchanges.
func (p *Proxy) writeChatError(c *fiber.Ctx, log *slog.Logger, ex *exchange.Exchange, err error, startTime time.Time) error {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: chat.ErrEmptyMessage.Error()})

	case errors.Is(err, chat.ErrNotConfigured):
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: chat.ErrNotConfigured.Error()})
	}

	log.Error("chat upstream failed", "error", err)

	ex.Error = err.Error()
	ex.UpstreamStatus = chat.UpstreamStatus(err)
	ex.SetDuration(time.Since(startTime))
	p.workerPool.Enqueue(worker.Job{Exchange: ex})

	resp := chat.ErrorResponse{Error: errFailedReply}
	if p.config.ExposeErrorDetails {
		resp.Details = errorDetails(err)
	}

	return c.Status(fiber.StatusBadGateway).JSON(resp)
}

// errorDetails describes err for non-production clients. An upstream JSON
// error body is embedded as-is.
func errorDetails(err error) any {
	var upstreamErr *coze.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return err.Error()
	}

	details := fiber.Map{"upstream_status": upstreamErr.StatusCode}
	if json.Valid([]byte(upstreamErr.Body)) {
		details["upstream_body"] = json.RawMessage(upstreamErr.Body)
	} else {
		details["upstream_body"] = upstreamErr.Body
	}
	return details
}
