package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/chatrelay/pkg/eventstream/utils"
	"github.com/papercomputeco/chatrelay/pkg/extract"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	storageutils "github.com/papercomputeco/chatrelay/pkg/storage/utils"
	"github.com/papercomputeco/chatrelay/proxy"
)

// logOptions are the logging flags shared by the serve commands.
type logOptions struct {
	debug   bool
	json    bool
	logFile string
}

// newLogger builds the service logger: pretty output on stdout (JSON with
// --log-json), plus JSON lines appended to --log-file when set.
func (o logOptions) newLogger() (*slog.Logger, func(), error) {
	stdout := logger.New(
		logger.WithDebug(o.debug),
		logger.WithPretty(!o.json),
		logger.WithJSON(o.json),
	)

	if o.logFile == "" {
		return stdout, func() {}, nil
	}

	f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(o.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)

	return logger.Multi(stdout, file), func() { _ = f.Close() }, nil
}

// runtime holds the components shared by the relay and the API server.
type runtime struct {
	driver    storage.Driver
	publisher eventstream.Publisher
	chat      *chat.Service
}

func newRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (*runtime, error) {
	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		PostgresDSN: cfg.Storage.PostgresDSN,
		SQLitePath:  cfg.Storage.SQLitePath,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.BrokerList(),
		Topic:        cfg.EventStream.Topic,
		Logger:       log,
	})
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	return &runtime{
		driver:    driver,
		publisher: publisher,
		chat:      newChatService(cfg, log),
	}, nil
}

func (r *runtime) Close() error {
	return errors.Join(r.publisher.Close(), r.driver.Close())
}

func newChatService(cfg *config.Config, log *slog.Logger) *chat.Service {
	client := coze.NewClient(coze.Config{
		BaseURL:         cfg.Upstream.BaseURL,
		BotID:           cfg.Upstream.BotID,
		APIKey:          cfg.Upstream.APIKey,
		UserID:          cfg.Upstream.UserID,
		AutoSaveHistory: cfg.Upstream.AutoSaveHistory,
	}, log)

	if err := client.Configured(); err != nil {
		// Keep serving: chat requests answer with a configuration error.
		log.Warn("coze upstream is not configured", "error", err)
	}

	var opts []chat.Option
	if cfg.Proxy.TimeoutSeconds > 0 {
		opts = append(opts, chat.WithTimeout(time.Duration(cfg.Proxy.TimeoutSeconds)*time.Second))
	}

	return chat.NewService(client, extract.NewExtractor(cfg.Chat.DefaultReply, log), log, opts...)
}

func proxyConfig(cfg *config.Config, publisher eventstream.Publisher) proxy.Config {
	return proxy.Config{
		ListenAddr:         cfg.Proxy.Listen,
		AuthUpstreamURL:    cfg.Auth.Upstream,
		CORSOrigins:        cfg.Proxy.CORSOrigins,
		ExposeErrorDetails: cfg.Proxy.ExposeErrorDetails,
		BotID:              cfg.Upstream.BotID,
		Publisher:          publisher,
	}
}

// watchConfig logs config file edits. Settings are read once at startup, so
// changes only take effect after a restart.
func watchConfig(v *viper.Viper, current *config.Config, log *slog.Logger) {
	config.Watch(v, log, func(next *config.Config) {
		if changed := config.Diff(current, next); len(changed) > 0 {
			log.Warn("config changed on disk, restart to apply", "keys", changed)
		}
	})
}
