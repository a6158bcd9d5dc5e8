package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/xdpwalk/internal/config"
	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/daemon"
	logpkg "firestige.xyz/xdpwalk/internal/log"
	"firestige.xyz/xdpwalk/internal/program"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run a program over a pcap/pcapng file",
	Long: `Replay a capture file through a packet program and print its events.

Starts from the defaults (or --config) and applies the flags on top.
Metrics are disabled unless a config file enables them. A summary of
verdicts is printed to stderr at the end.

Examples:
  xdpwalk replay -f trace.pcap --program portfilter --block 22,443 --capture 64
  xdpwalk replay -f trace.pcapng --program flowlog --format json --lanes 4`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := buildReplayConfig(configFile, replayOpts)
		if err != nil {
			exitWithError("invalid replay options", err)
		}
		if err := runReplay(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
			exitWithError("replay failed", err)
		}
	},
}

type replayOptions struct {
	file     string
	loop     bool
	program  string
	block    []uint
	verdict  string
	capture  uint32
	lanes    int
	dispatch string
	format   string
}

var replayOpts replayOptions

func init() {
	f := replayCmd.Flags()
	f.StringVarP(&replayOpts.file, "file", "f", "", "pcap or pcapng file to replay (required)")
	f.BoolVar(&replayOpts.loop, "loop", false, "restart the file at EOF until interrupted")
	f.StringVar(&replayOpts.program, "program", program.PortFilterName, fmt.Sprintf("program to run %v", program.Names()))
	f.UintSliceVar(&replayOpts.block, "block", nil, "portfilter: ports to match")
	f.StringVar(&replayOpts.verdict, "verdict", "", "portfilter: action for matching packets (default drop)")
	f.Uint32Var(&replayOpts.capture, "capture", 0, "packet bytes attached to each event")
	f.IntVar(&replayOpts.lanes, "lanes", 0, "number of lanes (0 = GOMAXPROCS or config)")
	f.StringVar(&replayOpts.dispatch, "dispatch", "", "flow-hash | round-robin | consistent-hash")
	f.StringVar(&replayOpts.format, "format", "", "console event format: json | text")
	replayCmd.MarkFlagRequired("file")
}

func buildReplayConfig(path string, opts replayOptions) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg.Metrics.Enabled = false
	}

	cfg.Source.Type = "file"
	cfg.Source.File.Path = opts.file
	cfg.Source.File.Loop = opts.loop
	cfg.Reporters.Console.Enabled = true
	if opts.format != "" {
		cfg.Reporters.Console.Format = opts.format
	}
	if opts.lanes > 0 {
		cfg.Runtime.Lanes = opts.lanes
	}
	if opts.dispatch != "" {
		cfg.Runtime.Dispatch = opts.dispatch
	}

	if opts.program != "" && opts.program != cfg.Program.Name {
		cfg.Program.Name = opts.program
		cfg.Program.Options = nil
	}
	if cfg.Program.Options == nil {
		cfg.Program.Options = map[string]any{}
	}
	switch cfg.Program.Name {
	case program.PortFilterName:
		if len(opts.block) > 0 {
			cfg.Program.Options["ports"] = opts.block
		}
		if opts.verdict != "" {
			cfg.Program.Options["verdict"] = opts.verdict
		}
		if opts.capture > 0 {
			cfg.Program.Options["capture_bytes"] = opts.capture
		}
	case program.FlowLogName:
		if opts.capture > 0 {
			cfg.Program.Options["capture_bytes"] = opts.capture
		}
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runReplay(ctx context.Context, cfg *config.Config, out, summary io.Writer) error {
	if err := logpkg.Init(cfg.Log); err != nil {
		return err
	}
	defer logpkg.Close()
	d, err := daemon.New(cfg, daemon.WithConsoleOutput(out))
	if err != nil {
		return err
	}
	if err := d.Run(ctx); err != nil {
		return err
	}
	printSummary(summary, d.Stats())
	return nil
}

func printSummary(w io.Writer, s daemon.Stats) {
	fmt.Fprintf(w, "packets: %d received, %d dropped before a lane\n", s.Runtime.Received, s.Runtime.QueueDrops)
	for _, a := range core.Actions {
		if n := s.Runtime.Actions[a]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", a, n)
		}
	}
	var lost uint64
	for _, l := range s.Events {
		lost += l.Lost
	}
	fmt.Fprintf(w, "events: %d collected, %d lost, %d reported\n", s.Collector.Received, lost, s.Collector.Reported)
}
