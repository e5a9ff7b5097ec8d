package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --bot-id
// on both "chatrelay serve" and "chatrelay serve proxy").
type Flag struct {
	// Name is the long flag name (e.g. "bot-id").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.bot_id").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag, AddUintFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagProxyListen        = "proxy-listen"
	FlagAPIListen          = "api-listen"
	FlagTimeout            = "timeout"
	FlagCORSOrigins        = "cors-origins"
	FlagExposeErrorDetails = "expose-error-details"
	FlagBaseURL            = "base-url"
	FlagBotID              = "bot-id"
	FlagUserID             = "user-id"
	FlagAuthUpstream       = "auth-upstream"
	FlagDefaultReply       = "default-reply"
	FlagSQLite             = "sqlite"
	FlagPostgres           = "postgres"
	FlagEventStream        = "eventstream"
	FlagKafkaBrokers       = "kafka-brokers"
	FlagKafkaTopic         = "kafka-topic"
	FlagProxyTarget        = "proxy-target"
	FlagAPITarget          = "api-target"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagProxyListen:           {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for the chat relay to listen on"},
	FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the chat relay to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagTimeout:               {Name: "timeout", ViperKey: "proxy.timeout_seconds", Description: "Seconds to wait for the upstream to finish a reply"},
	FlagCORSOrigins:           {Name: "cors-origins", ViperKey: "proxy.cors_origins", Description: "Comma separated browser origins allowed by CORS"},
	FlagExposeErrorDetails:    {Name: "expose-error-details", ViperKey: "proxy.expose_error_details", Description: "Include upstream error details in error responses (not for production)"},
	FlagBaseURL:               {Name: "base-url", ViperKey: "upstream.base_url", Description: "Coze API base URL"},
	FlagBotID:                 {Name: "bot-id", Shorthand: "b", ViperKey: "upstream.bot_id", Description: "Coze bot ID (env: COZE_BOT_ID)"},
	FlagUserID:                {Name: "user-id", ViperKey: "upstream.user_id", Description: "User ID reported to the Coze API"},
	FlagAuthUpstream:          {Name: "auth-upstream", ViperKey: "auth.upstream", Description: "Auth backend that /api/auth/* is forwarded to"},
	FlagDefaultReply:          {Name: "default-reply", ViperKey: "chat.default_reply", Description: "Reply sent when no answer can be extracted"},
	FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	FlagPostgres:              {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string (takes precedence over --sqlite)"},
	FlagEventStream:           {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Exchange event publisher (none, kafka)"},
	FlagKafkaBrokers:          {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:            {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for exchange events"},
	FlagProxyTarget:           {Name: "proxy-target", ViperKey: "client.proxy_target", Description: "Chat relay URL"},
	FlagAPITarget:             {Name: "api-target", ViperKey: "client.api_target", Description: "API server URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultsViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	return defaultsViper().GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	return defaultsViper().GetUint(viperKey)
}

func defaultBool(viperKey string) bool {
	return defaultsViper().GetBool(viperKey)
}
