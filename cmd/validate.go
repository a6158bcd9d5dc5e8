package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/xdpwalk/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting anything.

With --print the effective configuration (file + env overrides + defaults)
is written to stdout as YAML.

Examples:
  xdpwalk validate -c config.yml
  xdpwalk validate -c config.yml --print`,
	Run: func(cmd *cobra.Command, args []string) {
		if configFile == "" {
			exitWithError("validate requires --config", nil)
		}
		if err := runValidate(cmd.OutOrStdout(), configFile, validatePrint); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validatePrint bool

func init() {
	validateCmd.Flags().BoolVar(&validatePrint, "print", false,
		"print the effective configuration as YAML")
}

func runValidate(w io.Writer, path string, printYAML bool) error {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return err
	}
	if printYAML {
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	fmt.Fprintf(w, "VALID: source=%s program=%s lanes=%d dispatch=%s\n",
		cfg.Source.Type,
		cfg.Program.Name,
		cfg.Runtime.Lanes,
		cfg.Runtime.Dispatch,
	)
	return nil
}
