package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/config"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <input>",
	Short: "Resolve a recipient the way the send form does and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("chain")
		destination, _ := cmd.Flags().GetString("destination")
		denom, _ := cmd.Flags().GetString("denom")
		channel, _ := cmd.Flags().GetString("channel")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		cfg, err := config.LoadSendServiceConfig(configPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		factory, cleanup, err := buildFactory(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		s, err := factory.New(source)
		if err != nil {
			return err
		}
		defer s.Close()

		if denom != "" {
			s.SetToken(&models.Token{Denom: denom})
		}
		s.SetInput(args[0])
		if err := s.Settle(ctx); err != nil {
			return fmt.Errorf("resolution did not finish: %w", err)
		}
		if destination != "" {
			if err := s.ChooseDestinationChain(destination); err != nil {
				return err
			}
			if err := s.Settle(ctx); err != nil {
				return fmt.Errorf("channel discovery did not finish: %w", err)
			}
		}
		if channel != "" {
			if err := s.SelectChannel(channel); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s.Output())
	},
}

func init() {
	resolveCmd.Flags().String("chain", "", "source chain key")
	resolveCmd.Flags().String("destination", "", "destination chain for addresses with a shared prefix")
	resolveCmd.Flags().String("denom", "", "denom of the token being sent (cw20:<contract> for cw20 tokens)")
	resolveCmd.Flags().String("channel", "", "IBC channel to select, e.g. channel-42")
	resolveCmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for name services and channel discovery")
	_ = resolveCmd.MarkFlagRequired("chain")
}
