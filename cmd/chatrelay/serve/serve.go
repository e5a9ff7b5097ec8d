// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/proxy"
)

type ServeCommander struct {
	viper  *viper.Viper
	cfg    *config.Config
	log    logOptions
	logger *slog.Logger
}

const serveLongDesc string = `Run chatrelay services.

Use subcommands to run individual services or all services together:
  chatrelay serve          Run both the chat relay and the API server
  chatrelay serve api      Run just the API server
  chatrelay serve proxy    Run just the chat relay

Settings come from flags, then CHATRELAY_* environment variables (COZE_BOT_ID
and COZE_API_KEY are also read), then config.toml, then defaults. The Coze API
key is only read from the environment or config.toml.`

const serveShortDesc string = "Run chatrelay services"

var serveFlags = concat(
	[]string{config.FlagProxyListen, config.FlagAPIListen},
	sharedFlags,
	relayFlags,
)

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, cmder.cfg, cmder.log, err = resolve(cmd, serveFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	registerFlags(cmd, serveFlags)
	addLogFlags(cmd)

	cmd.AddCommand(newAPICmd())
	cmd.AddCommand(newProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var closeLog func()
	var err error
	c.logger, closeLog, err = c.log.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	rt, err := newRuntime(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := proxy.New(proxyConfig(c.cfg, rt.publisher), rt.chat, rt.driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		Chat:       rt.chat,
	}, rt.driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	defer apiServer.Shutdown()

	watchConfig(c.viper, c.cfg, c.logger)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	return waitForShutdown(errChan, c.logger)
}

// waitForShutdown blocks until a server fails or the process is signalled.
func waitForShutdown(errChan <-chan error, log *slog.Logger) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}
