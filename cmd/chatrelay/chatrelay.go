// Package chatrelaycmder is the root chatrelay command.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	statuscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/status"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
)

const chatRelayLongDesc string = `Chatrelay answers chat messages through a Coze bot.

It forwards each message to the Coze chat API, reads the streamed reply and
returns the final answer as a single JSON reply. Tool outputs produced by the
bot win over its plain answer text.

Run services using:
  chatrelay serve proxy    Run the chat relay
  chatrelay serve api      Run the API server
  chatrelay serve          Run both servers together

Talk to a running relay with "chatrelay chat" and inspect what it recorded
with "chatrelay status".`

const chatRelayShortDesc string = "Chatrelay - Coze chat relay"

func NewChatRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrelay",
		Short:        chatRelayShortDesc,
		Long:         chatRelayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.chatrelay or ~/.chatrelay)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
