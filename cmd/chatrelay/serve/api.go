package servecmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

type apiCommander struct {
	viper  *viper.Viper
	cfg    *config.Config
	log    logOptions
	logger *slog.Logger
}

const apiLongDesc string = `Run the API server.

The API server lists recorded exchanges (GET /exchanges, GET /exchanges/:id),
reports aggregate stats (GET /stats) and serves MCP tools on /mcp.
Point it at the same --sqlite or --postgres storage as the chat relay.`

const apiShortDesc string = "Run the chatrelay API server"

var apiFlags = concat(
	[]string{config.FlagAPIListenStandalone},
	sharedFlags,
)

func newAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, cmder.cfg, cmder.log, err = resolve(cmd, apiFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	registerFlags(cmd, apiFlags)

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
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

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		Chat:       rt.chat,
	}, rt.driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	defer server.Shutdown()

	watchConfig(c.viper, c.cfg, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	return waitForShutdown(errChan, c.logger)
}
