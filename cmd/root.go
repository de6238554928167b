package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhydrogen/hydrogen/cmd/serve"
	"github.com/openhydrogen/hydrogen/cmd/watch"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hydrogen",
		Short: "device-control protocol server",
		Long: fmt.Sprintf(`hydrogen (v%s)

A server for INDI-style device-control protocols. It reads property-update
documents from a driver feed and streams them to any number of consumers,
delivering binary payloads either inlined as base64 or as shared memory
buffers for same-host clients.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hydrogen",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hydrogen v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(watch.WatchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
