package config

import (
	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/extract"
)

const (
	defaultProxyListen    = ":3000"
	defaultAPIListen      = ":3001"
	defaultTimeoutSeconds = 300
	defaultCORSOrigins    = "*"

	defaultClientProxyTarget = "http://localhost:3000"
	defaultClientAPITarget   = "http://localhost:3001"

	// EventStreamNone disables exchange event publishing.
	EventStreamNone = "none"

	// EventStreamKafka publishes exchange events to Kafka.
	EventStreamKafka = "kafka"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen:         defaultProxyListen,
			TimeoutSeconds: defaultTimeoutSeconds,
			CORSOrigins:    defaultCORSOrigins,
		},
		Upstream: UpstreamConfig{
			BaseURL: coze.DefaultBaseURL,
			UserID:  coze.DefaultUserID,
		},
		Chat: ChatConfig{
			DefaultReply: extract.DefaultReply,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: EventStreamNone,
			Topic:    kafka.DefaultTopic,
		},
	}
}
