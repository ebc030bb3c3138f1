// Package cli wires configuration, rendezvous, transport, and sessions
// into the beamlink command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:  `beamlink`,
	Long: `beamlink shares files peer to peer with a short session code or over the local radar`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing beamlink.yaml")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(radarCmd)
	rootCmd.AddCommand(fetchCmd)
}
