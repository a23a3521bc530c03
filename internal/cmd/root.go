package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/webmeet/internal/ui"
	"github.com/BioHazard786/webmeet/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meet",
	Short: "Two-party video calls from the terminal using WebRTC",
	Long: `meet joins a two-person meeting through a signaling relay and sets up a direct
WebRTC call with the other participant. Audio and video flow peer to peer;
the relay only passes the negotiation messages. Meetings are shared with the
browser client through their link.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// An interrupt outside the call screen still leaves the meeting cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
