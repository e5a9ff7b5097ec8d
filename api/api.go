package api

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/api/mcp"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Server is the API server for querying recorded exchanges.
type Server struct {
	config    Config
	driver    storage.Driver
	logger    *slog.Logger
	app       *fiber.App
	mcpServer *mcp.Server
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with other components
// (e.g., the proxy when both run in one process).
func NewServer(config Config, driver storage.Driver, logger *slog.Logger) (*Server, error) {
	mcpServer, err := mcp.NewServer(mcp.Config{
		Chat:   config.Chat,
		Driver: driver,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		driver:    driver,
		logger:    logger,
		app:       app,
		mcpServer: mcpServer,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Get("/exchanges", s.handleListExchanges)
	app.Get("/exchanges/:id", s.handleGetExchange)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
