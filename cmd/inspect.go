package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/xdpwalk/internal/core/xdp"
	"firestige.xyz/xdpwalk/internal/source/file"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how each frame of a capture file is walked",
	Long: `Walk every frame of a pcap/pcapng file and print the headers found.

Each line shows the walker's view (ethertype, addresses, transport,
payload offset) next to the layers gopacket decodes for the same frame,
which makes truncated and unsupported frames easy to spot.

Examples:
  xdpwalk inspect -f trace.pcap
  xdpwalk inspect -f trace.pcapng --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(cmd.OutOrStdout(), inspectFile, inspectLimit); err != nil {
			exitWithError("inspect failed", err)
		}
	},
}

var (
	inspectFile  string
	inspectLimit int
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectFile, "file", "f", "", "pcap or pcapng file (required)")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 0, "stop after this many frames (0 = all)")
	inspectCmd.MarkFlagRequired("file")
}

func runInspect(w io.Writer, path string, limit int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := file.OpenReader(f)
	if err != nil {
		return err
	}

	for i := 1; limit <= 0 || i <= limit; i++ {
		data, _, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		fmt.Fprintf(w, "#%d len=%d %s [%s]\n", i, len(data), describeFrame(data), layerNames(data))
	}
	return nil
}

// describeFrame reports how far the walker gets through data.
func describeFrame(data []byte) string {
	ctx := xdp.NewContext(xdp.NewMD(data))

	eth, ok := ctx.LinkHeader()
	if !ok {
		return "truncated ethernet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "eth=0x%04x", eth.Proto())

	ip, ok := ctx.NetworkHeader()
	if !ok {
		return b.String()
	}
	fmt.Fprintf(&b, " %s -> %s proto=%d", ip.Saddr(), ip.Daddr(), ip.Protocol())

	tr, ok := ctx.TransportHeader()
	if !ok {
		return b.String()
	}
	fmt.Fprintf(&b, " %s %d -> %d", tr.Kind(), tr.Source(), tr.Dest())
	if tcp, ok := tr.TCP(); ok {
		fmt.Fprintf(&b, " flags=0x%02x", tcp.Flags())
	}

	if p, ok := ctx.Payload(); ok {
		fmt.Fprintf(&b, " payload=%d+%d", p.Offset(), p.Len())
	}
	return b.String()
}

func layerNames(data []byte) string {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	var names []string
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}
	return strings.Join(names, " ")
}
