package servecmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/proxy"
)

type proxyCommander struct {
	viper  *viper.Viper
	cfg    *config.Config
	log    logOptions
	logger *slog.Logger
}

const proxyLongDesc string = `Run the chat relay.

The relay answers POST /api/coze-chat by sending the message to the
configured Coze bot and returning the final reply as {"reply": "..."}.
Every exchange is recorded asynchronously to the configured storage and,
optionally, published to Kafka.

When --auth-upstream is set, /api/auth/* is passed through to that backend.`

const proxyShortDesc string = "Run the chat relay"

var proxyFlags = concat(
	[]string{config.FlagProxyListenStandalone},
	sharedFlags,
	relayFlags,
)

func newProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.viper, cmder.cfg, cmder.log, err = resolve(cmd, proxyFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	registerFlags(cmd, proxyFlags)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
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

	watchConfig(c.viper, c.cfg, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	return waitForShutdown(errChan, c.logger)
}
