package main

import (
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the local chain registry mirror",
}

var registryDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Mirror the cosmos chain registry _IBC directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, _ := cmd.Flags().GetString("dst")
		if err := registry.Download(cmd.Context(), dst); err != nil {
			return err
		}
		log.Info().Str("dst", dst).Msg("IBC registry downloaded, set ibc_registry_dir to use it")
		return nil
	},
}

func init() {
	registryDownloadCmd.Flags().String("dst", "./_IBC", "directory to download the registry to")
	registryCmd.AddCommand(registryDownloadCmd)
}
