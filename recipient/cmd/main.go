package main

import (
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/guard"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/Cogwheel-Validator/spectra-send/recipient/rpc"
	"github.com/Cogwheel-Validator/spectra-send/recipient/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var log zerolog.Logger

func init() {
	// Initialize zerolog with console writer
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the other packages
	rpc.SetLogger(log)
	session.SetLogger(log)
	channels.SetLogger(log)
	nameservice.SetLogger(log)
	registry.SetLogger(log)
	guard.SetLogger(log)
}

// configPath is nil when the config comes from the environment.
var configPath *string

var rootCmd = &cobra.Command{
	Use:   "spectra-send",
	Short: "Resolve send recipients and pick IBC channels",
	Long: `spectra-send resolves what a user typed into the recipient field of a
multi-chain wallet: raw addresses of every supported ecosystem, name-service
handles and saved contacts. It determines the destination chain and, for
IBC transfers, the channel to send over.

Configuration is read from the TOML file given with --config, or from
SPECTRA_SEND_* environment variables (and a .env file) when omitted.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			configPath = &path
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "service config file (toml), env vars are used when empty")
	rootCmd.AddCommand(serveCmd, resolveCmd, registryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
