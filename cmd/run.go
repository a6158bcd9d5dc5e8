package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"firestige.xyz/xdpwalk/internal/config"
	"firestige.xyz/xdpwalk/internal/daemon"
	logpkg "firestige.xyz/xdpwalk/internal/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured source, program and reporters",
	Long: `Run xdpwalk in the foreground from a configuration file.

The process:
  1. Loads and validates the configuration (env overrides: XDPWALK_*)
  2. Initializes logging and the metrics endpoint
  3. Starts the lanes, the event collector and the reporters
  4. Feeds frames from the source until it is exhausted or a signal arrives
  5. Drains lanes and events before exiting (SIGINT/SIGTERM); SIGHUP reloads logging

Examples:
  xdpwalk run -c /etc/xdpwalk/config.yml
  XDPWALK_LOG_LEVEL=debug xdpwalk run -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if configFile == "" {
			exitWithError("run requires --config", nil)
		}
		if err := runDaemon(cmd.Context(), configFile); err != nil {
			exitWithError("run failed", err)
		}
	},
}

func runDaemon(ctx context.Context, path string) error {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return err
	}
	if err := logpkg.Init(cfg.Log); err != nil {
		return err
	}
	defer logpkg.Close()

	d, err := daemon.New(cfg, daemon.WithReload(path))
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
