// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xdpwalk",
	Short: "xdpwalk - user-space XDP-style packet program runtime",
	Long: `xdpwalk runs XDP-style packet programs in user space.

Every frame is handed to a program as a bounded data window. The program
walks Ethernet → IPv4 → TCP/UDP with bounds-checked, zero-copy header
views, returns an action (aborted/drop/pass/tx/redirect) and may emit
fixed-layout events with a bounded packet capture. Events are drained per
lane and delivered to console or Kafka reporters.

Frames come from pcap/pcapng files or from AF_PACKET live capture.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
