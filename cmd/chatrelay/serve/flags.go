package servecmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

var (
	// sharedFlags configure the upstream, storage and event stream used by
	// every serve command.
	sharedFlags = []string{
		config.FlagBaseURL,
		config.FlagBotID,
		config.FlagUserID,
		config.FlagDefaultReply,
		config.FlagTimeout,
		config.FlagSQLite,
		config.FlagPostgres,
		config.FlagEventStream,
		config.FlagKafkaBrokers,
		config.FlagKafkaTopic,
	}

	// relayFlags only apply to the chat relay.
	relayFlags = []string{
		config.FlagCORSOrigins,
		config.FlagExposeErrorDetails,
		config.FlagAuthUpstream,
	}
)

// registerFlags adds the registry flags named by keys to cmd. Values are read
// back through viper, so the flag targets are throwaway.
func registerFlags(cmd *cobra.Command, keys []string) {
	for _, key := range keys {
		switch key {
		case config.FlagTimeout:
			config.AddUintFlag(cmd, config.Flags, key, new(uint))
		case config.FlagExposeErrorDetails:
			config.AddBoolFlag(cmd, config.Flags, key, new(bool))
		default:
			config.AddStringFlag(cmd, config.Flags, key, new(string))
		}
	}
}

// addLogFlags registers the logging flags inherited by every serve command.
func addLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON instead of pretty output")
	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")
}

// resolve reads flags, environment and config file into a Config.
func resolve(cmd *cobra.Command, keys []string) (*viper.Viper, *config.Config, logOptions, error) {
	var opts logOptions
	var err error

	if opts.debug, err = cmd.Flags().GetBool("debug"); err != nil {
		return nil, nil, opts, fmt.Errorf("could not get debug flag: %w", err)
	}
	opts.json, _ = cmd.Flags().GetBool("log-json")
	opts.logFile, _ = cmd.Flags().GetString("log-file")

	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, opts, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, nil, opts, fmt.Errorf("loading config: %w", err)
	}

	return v, cfg, opts, nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
