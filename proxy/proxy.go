// Package proxy provides the chat relay HTTP server. It answers chat messages
// through the chat service, records every exchange asynchronously and passes
// auth requests through to the auth backend.
package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/proxy/header"
	"github.com/papercomputeco/chatrelay/proxy/worker"
)

const (
	chatPath     = "/api/coze-chat"
	authPath     = "/api/auth/*"
	eventService = "chatrelay"
)

// Proxy is the chat relay server. Replies are returned synchronously while
// exchanges are enqueued for async storage via its worker pool.
type Proxy struct {
	config        Config
	chat          *chat.Service
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of exchanges.
func New(config Config, svc *chat.Service, driver storage.Driver, logger *slog.Logger) (*Proxy, error) {
	if svc == nil {
		return nil, errors.New("chat service is required")
	}

	if config.CORSOrigins == "" {
		config.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Add compression middleware to handle responses
	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Source: eventstream.EventSource{
			Service: eventService,
			BotID:   config.BotID,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		chat:          svc,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	app.Get("/ping", p.handlePing)
	app.Get("/healthz", p.handlePing)
	app.Post(chatPath, p.handleChat)
	app.All(authPath, p.handleAuth)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"auth_upstream", p.config.AuthUpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"auth_upstream", p.config.AuthUpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

func (p *Proxy) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
