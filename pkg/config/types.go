package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Proxy       ProxyConfig       `toml:"proxy"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Auth        AuthConfig        `toml:"auth"`
	Chat        ChatConfig        `toml:"chat"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// ProxyConfig holds chat relay server settings.
type ProxyConfig struct {
	Listen             string `toml:"listen,omitempty"`
	TimeoutSeconds     uint   `toml:"timeout_seconds,omitempty"`
	CORSOrigins        string `toml:"cors_origins,omitempty"`
	ExposeErrorDetails bool   `toml:"expose_error_details,omitempty"`
}

// UpstreamConfig holds the Coze API settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url,omitempty"`
	BotID           string `toml:"bot_id,omitempty"`
	APIKey          string `toml:"api_key,omitempty"`
	UserID          string `toml:"user_id,omitempty"`
	AutoSaveHistory bool   `toml:"auto_save_history,omitempty"`
}

// AuthConfig holds the auth backend that /api/auth/* is forwarded to.
type AuthConfig struct {
	Upstream string `toml:"upstream,omitempty"`
}

// ChatConfig holds reply extraction settings.
type ChatConfig struct {
	DefaultReply string `toml:"default_reply,omitempty"`
}

// StorageConfig holds shared storage settings used by both proxy and API.
// PostgresDSN wins over SQLitePath; with neither set exchanges are kept in
// memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// servers (e.g. chatrelay chat). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// EventStreamConfig holds exchange event publishing settings.
type EventStreamConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked by "config list".
	secret bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func secret(info configKeyInfo) configKeyInfo {
	info.secret = true
	return info
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"proxy.listen":               stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.timeout_seconds":      uintKey("proxy.timeout_seconds", func(c *Config) *uint { return &c.Proxy.TimeoutSeconds }),
	"proxy.cors_origins":         stringKey(func(c *Config) *string { return &c.Proxy.CORSOrigins }),
	"proxy.expose_error_details": boolKey("proxy.expose_error_details", func(c *Config) *bool { return &c.Proxy.ExposeErrorDetails }),

	"upstream.base_url":          stringKey(func(c *Config) *string { return &c.Upstream.BaseURL }),
	"upstream.bot_id":            stringKey(func(c *Config) *string { return &c.Upstream.BotID }),
	"upstream.api_key":           secret(stringKey(func(c *Config) *string { return &c.Upstream.APIKey })),
	"upstream.user_id":           stringKey(func(c *Config) *string { return &c.Upstream.UserID }),
	"upstream.auto_save_history": boolKey("upstream.auto_save_history", func(c *Config) *bool { return &c.Upstream.AutoSaveHistory }),

	"auth.upstream": stringKey(func(c *Config) *string { return &c.Auth.Upstream }),

	"chat.default_reply": stringKey(func(c *Config) *string { return &c.Chat.DefaultReply }),

	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": secret(stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN })),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"client.proxy_target": stringKey(func(c *Config) *string { return &c.Client.ProxyTarget }),
	"client.api_target":   stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

// orderedKeys matches the TOML section layout.
var orderedKeys = []string{
	"proxy.listen",
	"proxy.timeout_seconds",
	"proxy.cors_origins",
	"proxy.expose_error_details",
	"upstream.base_url",
	"upstream.bot_id",
	"upstream.api_key",
	"upstream.user_id",
	"upstream.auto_save_history",
	"auth.upstream",
	"chat.default_reply",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"api.listen",
	"client.proxy_target",
	"client.api_target",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
}
