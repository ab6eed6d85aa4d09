// Package tricklecmder is the root trickle command.
package tricklecmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/trickle/cmd/trickle/ask"
	chatcmder "github.com/papercomputeco/trickle/cmd/trickle/chat"
	configcmder "github.com/papercomputeco/trickle/cmd/trickle/config"
	historycmder "github.com/papercomputeco/trickle/cmd/trickle/history"
	servecmder "github.com/papercomputeco/trickle/cmd/trickle/serve"
	versioncmder "github.com/papercomputeco/trickle/cmd/trickle/version"
)

const trickleLongDesc string = `Trickle is a streaming chat client for SSE producers.

Replies arrive as Server-Sent Events and are rendered as they stream.
Dropped streams reconnect with backoff and every finished turn is kept in
a local history.

Get started:
  trickle serve        Run the demo producer
  trickle chat         Chat interactively
  trickle ask "..."    Ask a single question`

const trickleShortDesc string = "Trickle - streaming SSE chat"

func NewTrickleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trickle",
		Short:         trickleShortDesc,
		Long:          trickleLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .trickle/ directory")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
