package collector

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/core/xdp"
	"firestige.xyz/xdpwalk/internal/program"
	"firestige.xyz/xdpwalk/internal/reporter"
)

type recorder struct {
	mu      sync.Mutex
	events   []reporter.Event
	flushed  bool
	flushErr error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Report(_ context.Context, ev *reporter.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = true
	r.flushErr = ctx.Err()
	return r.flushErr
}

func (r *recorder) Close() error { return nil }

type failing struct{}

func (failing) Name() string                                  { return "failing" }
func (failing) Report(context.Context, *reporter.Event) error { return errors.New("unavailable") }
func (failing) Flush(context.Context) error                   { return nil }
func (failing) Close() error                                  { return nil }

func tcpFrame(t *testing.T, dport uint16) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
			DstMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP,
			SrcIP: net.IP{172, 16, 0, 1}, DstIP: net.IP{172, 16, 0, 2}},
		&layers.TCP{SrcPort: 40000, DstPort: layers.TCPPort(dport), ACK: true, PSH: true},
		gopacket.Payload([]byte("hello")),
	)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCollectorDeliversEvents(t *testing.T) {
	ring, err := perf.NewRing(2, 16)
	require.NoError(t, err)
	pf, err := program.NewPortFilter(program.PortFilterConfig{Ports: []int{443}, CaptureBytes: 14}, ring)
	require.NoError(t, err)

	frame := tcpFrame(t, 443)
	md := xdp.NewMD(frame)
	md.Lane = 1
	require.Equal(t, core.ActionDrop, pf.Run(xdp.NewContext(md)))

	// A record of the wrong type is too short to decode.
	short, err := perf.NewPerfMap[uint32](ring)
	require.NoError(t, err)
	require.NoError(t, short.Insert(xdp.NewContext(xdp.NewMD(frame)), 7, 0))

	rec := &recorder{}
	c := New(ring, program.PortFilterName, rec, failing{})
	c.Start(context.Background())
	ring.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Stop(ctx)

	assert.Equal(t, Stats{Received: 2, DecodeErrors: 1, Reported: 1, ReportErrors: 1}, c.Stats())
	assert.True(t, rec.flushed)
	require.Len(t, rec.events, 1)

	ev := rec.events[0]
	assert.Equal(t, program.PortFilterName, ev.Program)
	assert.Equal(t, 1, ev.Lane)
	assert.Equal(t, netip.MustParseAddr("172.16.0.1"), ev.SrcIP)
	assert.Equal(t, netip.MustParseAddr("172.16.0.2"), ev.DstIP)
	assert.Equal(t, uint16(40000), ev.SrcPort)
	assert.Equal(t, uint16(443), ev.DstPort)
	assert.Equal(t, uint8(6), ev.Protocol)
	assert.Equal(t, core.ActionDrop, ev.Action)
	assert.Equal(t, uint32(len(frame)), ev.PacketLen)
	assert.Equal(t, uint32(54), ev.PayloadOffset)
	assert.Equal(t, uint8(xdp.TCPFlagACK|xdp.TCPFlagPSH), ev.TCPFlags)
	assert.Equal(t, frame[:14], ev.Captured)
}

func TestCollectorStopOnTimeout(t *testing.T) {
	ring, err := perf.NewRing(1, 4)
	require.NoError(t, err)

	rec := &recorder{}
	c := New(ring, "pass", rec)
	c.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Stop(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while the ring stayed open")
	}

	// Reporters still get a live context after the drain deadline passed.
	require.Error(t, ctx.Err())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.flushed)
	assert.NoError(t, rec.flushErr)
}
