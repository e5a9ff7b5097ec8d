package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/exchange"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// ListResponse is a page of exchanges, newest first.
type ListResponse struct {
	Count     int                  `json:"count"`
	Total     int                  `json:"total"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	Exchanges []*exchange.Exchange `json:"exchanges"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns aggregate counts over the stored exchanges.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.driver.Stats(c.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to compute stats"})
	}

	return c.JSON(stats)
}

// handleListExchanges returns a page of exchanges.
func (s *Server) handleListExchanges(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "limit must be a non-negative integer"})
	}

	offset, err := queryInt(c, "offset")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "offset must be a non-negative integer"})
	}

	opts := storage.ListOptions{Limit: limit, Offset: offset}.Normalize()

	ctx := c.Context()
	exchanges, err := s.driver.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list exchanges", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to list exchanges"})
	}

	total, err := s.driver.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count exchanges", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to count exchanges"})
	}

	if exchanges == nil {
		exchanges = []*exchange.Exchange{}
	}

	return c.JSON(ListResponse{
		Count:     len(exchanges),
		Total:     total,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
		Exchanges: exchanges,
	})
}

// handleGetExchange returns a single exchange by its ID.
func (s *Server) handleGetExchange(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(chat.ErrorResponse{Error: "id parameter required"})
	}

	ex, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(chat.ErrorResponse{Error: "exchange not found"})
		}
		s.logger.Error("failed to get exchange", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.ErrorResponse{Error: "failed to get exchange"})
	}

	return c.JSON(ex)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
