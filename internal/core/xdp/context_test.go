package xdp

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/xdpwalk/internal/core"
)

func TestLinkHeaderShortBuffers(t *testing.T) {
	frame := tcpFrame(t, 80, 443, nil)
	for n := 0; n < EthHdrLen; n++ {
		ctx := NewContext(NewMD(frame[:n]))
		_, ok := ctx.LinkHeader()
		assert.False(t, ok, "LinkHeader on %d bytes", n)
		_, ok = ctx.NetworkHeader()
		assert.False(t, ok)
		_, ok = ctx.TransportHeader()
		assert.False(t, ok)
		_, ok = ctx.Payload()
		assert.False(t, ok)
	}

	ctx := NewContext(NewMD(frame[:EthHdrLen]))
	eth, ok := ctx.LinkHeader()
	require.True(t, ok)
	assert.Equal(t, uint32(EthHdrLen), eth.Len())
}

func TestLinkHeaderFields(t *testing.T) {
	ctx := NewContext(NewMD(tcpFrame(t, 80, 443, nil)))
	eth, ok := ctx.LinkHeader()
	require.True(t, ok)

	assert.Equal(t, [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, eth.Dest())
	assert.Equal(t, [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, eth.Source())
	assert.Equal(t, uint16(EthPIP), eth.Proto())
	assert.Equal(t, uint32(0), eth.Offset())
}

func TestLinkHeaderIdempotent(t *testing.T) {
	ctx := NewContext(NewMD(tcpFrame(t, 80, 443, []byte("hello"))))
	first, ok := ctx.LinkHeader()
	require.True(t, ok)
	second, ok := ctx.LinkHeader()
	require.True(t, ok)

	assert.Equal(t, first.Offset(), second.Offset())
	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Proto(), second.Proto())
}

func TestNetworkHeaderNonIPv4(t *testing.T) {
	frame := tcpFrame(t, 80, 443, make([]byte, 64))
	for _, etherType := range []uint16{EthPARP, EthPIPv6, 0x8100, 0x88CC, 0x0000, 0x0008} {
		f := append([]byte(nil), frame...)
		f[12], f[13] = byte(etherType>>8), byte(etherType)
		ctx := NewContext(NewMD(f))

		_, ok := ctx.LinkHeader()
		require.True(t, ok)
		_, ok = ctx.NetworkHeader()
		assert.False(t, ok, "ethertype 0x%04x", etherType)
	}
}

func TestNetworkHeaderFields(t *testing.T) {
	ctx := NewContext(NewMD(udpFrame(t, 5000, 5001, []byte{1, 2, 3, 4})))
	ip, ok := ctx.NetworkHeader()
	require.True(t, ok)

	assert.Equal(t, uint8(4), ip.Version())
	assert.Equal(t, uint8(5), ip.IHL())
	assert.Equal(t, 20, ip.HeaderLen())
	assert.Equal(t, uint8(64), ip.TTL())
	assert.Equal(t, uint8(IPProtoUDP), ip.Protocol())
	assert.Equal(t, uint16(IPHdrLen+UDPHdrLen+4), ip.TotalLen())
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), ip.Saddr())
	assert.Equal(t, netip.MustParseAddr("192.168.1.2"), ip.Daddr())
	assert.Equal(t, [4]byte{192, 168, 1, 2}, ip.DaddrRaw())
	assert.False(t, ip.IsFragment())
	assert.Equal(t, uint32(EthHdrLen), ip.Offset())
	assert.Equal(t, uint32(IPHdrLen), ip.Len())
}

func TestNetworkHeaderTruncated(t *testing.T) {
	frame := tcpFrame(t, 80, 443, nil)
	ctx := NewContext(NewMD(frame[:EthHdrLen+IPHdrLen-1]))
	_, ok := ctx.LinkHeader()
	assert.True(t, ok)
	_, ok = ctx.NetworkHeader()
	assert.False(t, ok)
}

func TestTransportHeaderUnsupportedProtocol(t *testing.T) {
	ctx := NewContext(NewMD(icmpFrame(t)))
	_, ok := ctx.NetworkHeader()
	require.True(t, ok)
	_, ok = ctx.TransportHeader()
	assert.False(t, ok)
	_, ok = ctx.Payload()
	assert.False(t, ok)

	frame := tcpFrame(t, 80, 443, make([]byte, 32))
	for _, proto := range []byte{0, 1, 2, 41, 47, 50, 132, 255} {
		f := append([]byte(nil), frame...)
		f[EthHdrLen+9] = proto
		_, ok := NewContext(NewMD(f)).TransportHeader()
		assert.False(t, ok, "protocol %d", proto)
	}
}

func TestTransportPortsByteOrder(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		kind  TransportKind
		proto uint8
		size  uint32
	}{
		{"tcp", tcpFrame(t, 0x1234, 0xABCD, nil), TransportTCP, IPProtoTCP, TCPHdrLen},
		{"udp", udpFrame(t, 0x1234, 0xABCD, nil), TransportUDP, IPProtoUDP, UDPHdrLen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := NewContext(NewMD(tt.frame)).TransportHeader()
			require.True(t, ok)
			assert.Equal(t, tt.kind, tr.Kind())
			assert.Equal(t, tt.proto, tr.Protocol())
			assert.Equal(t, tt.size, tr.Len())
			assert.Equal(t, uint32(EthHdrLen+IPHdrLen), tr.Offset())

			off := EthHdrLen + IPHdrLen
			assert.Equal(t, uint16(tt.frame[off])<<8|uint16(tt.frame[off+1]), tr.Source())
			assert.Equal(t, uint16(tt.frame[off+2])<<8|uint16(tt.frame[off+3]), tr.Dest())
			assert.Equal(t, uint16(0x1234), tr.Source())
			assert.Equal(t, uint16(0xABCD), tr.Dest())
		})
	}
}

func TestTransportVariants(t *testing.T) {
	tr, ok := NewContext(NewMD(tcpFrame(t, 80, 443, nil))).TransportHeader()
	require.True(t, ok)
	tcp, ok := tr.TCP()
	require.True(t, ok)
	_, ok = tr.UDP()
	assert.False(t, ok)
	assert.Equal(t, uint32(1), tcp.Seq())
	assert.Equal(t, uint32(2), tcp.AckSeq())
	assert.Equal(t, uint8(5), tcp.DataOffset())
	assert.Equal(t, uint8(TCPFlagACK|TCPFlagPSH), tcp.Flags())
	assert.Equal(t, uint16(8192), tcp.Window())

	tr, ok = NewContext(NewMD(udpFrame(t, 53, 5353, []byte{1, 2}))).TransportHeader()
	require.True(t, ok)
	udp, ok := tr.UDP()
	require.True(t, ok)
	_, ok = tr.TCP()
	assert.False(t, ok)
	assert.Equal(t, uint16(53), udp.Source())
	assert.Equal(t, uint16(5353), udp.Dest())
	assert.Equal(t, uint16(UDPHdrLen+2), udp.Length())
}

func TestTransportZeroValue(t *testing.T) {
	tr, ok := NewContext(NewMD(arpFrame(t))).TransportHeader()
	require.False(t, ok)
	assert.Equal(t, Transport{}, tr)

	assert.NotPanics(t, func() {
		assert.Equal(t, uint16(0), tr.Source())
		assert.Equal(t, uint16(0), tr.Dest())
	})
	assert.Equal(t, uint8(0), tr.Protocol())
	assert.Equal(t, "unknown", tr.Kind().String())
	assert.Equal(t, uint32(0), tr.Len())
	_, ok = tr.TCP()
	assert.False(t, ok)
	_, ok = tr.UDP()
	assert.False(t, ok)
}

// Ethernet + minimal IPv4 + TCP 80 -> 443, no payload.
func TestScenarioFullTCPHeader(t *testing.T) {
	frame := tcpFrame(t, 80, 443, nil)
	require.Len(t, frame, 54)
	ctx := NewContext(NewMD(frame))

	tr, ok := ctx.TransportHeader()
	require.True(t, ok)
	assert.Equal(t, uint16(80), tr.Source())
	assert.Equal(t, uint16(443), tr.Dest())

	data, ok := ctx.Payload()
	require.True(t, ok)
	assert.Equal(t, uint32(0), data.Len())
	assert.Equal(t, uint32(54), data.Offset())
}

func TestScenarioTruncatedTCPHeader(t *testing.T) {
	frame := tcpFrame(t, 80, 443, nil)

	for _, n := range []int{33, 53} {
		ctx := NewContext(NewMD(frame[:n]))
		_, ok := ctx.TransportHeader()
		assert.False(t, ok, "truncated to %d bytes", n)
		_, ok = ctx.Payload()
		assert.False(t, ok)
	}

	// 53 bytes still hold the IPv4 header.
	_, ok := NewContext(NewMD(frame[:53])).NetworkHeader()
	assert.True(t, ok)
}

func TestScenarioARP(t *testing.T) {
	ctx := NewContext(NewMD(arpFrame(t)))
	eth, ok := ctx.LinkHeader()
	require.True(t, ok)
	assert.Equal(t, uint16(EthPARP), eth.Proto())

	_, ok = ctx.NetworkHeader()
	assert.False(t, ok)
	_, ok = ctx.TransportHeader()
	assert.False(t, ok)
	_, ok = ctx.Payload()
	assert.False(t, ok)
}

func TestContextHeadroom(t *testing.T) {
	frame := tcpFrame(t, 80, 443, []byte("abc"))
	withRoom := append(make([]byte, 16), frame...)

	md, err := NewMDWithHeadroom(withRoom, 16)
	require.NoError(t, err)
	ctx := NewContext(md)
	assert.Equal(t, uint32(len(frame)), ctx.Len())

	eth, ok := ctx.LinkHeader()
	require.True(t, ok)
	assert.Equal(t, uint32(0), eth.Offset())

	tr, ok := ctx.TransportHeader()
	require.True(t, ok)
	assert.Equal(t, uint32(EthHdrLen+IPHdrLen), tr.Offset())
	assert.Equal(t, uint16(443), tr.Dest())

	data, ok := ctx.Payload()
	require.True(t, ok)
	b, ok := data.Slice(3)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), b)
}

func TestContextRereadsWindow(t *testing.T) {
	frame := tcpFrame(t, 80, 443, nil)
	md := NewMD(frame)
	ctx := NewContext(md)

	_, ok := ctx.TransportHeader()
	require.True(t, ok)

	require.NoError(t, md.SetWindow(0, 40))
	_, ok = ctx.TransportHeader()
	assert.False(t, ok, "shrunken window must be observed")
	_, ok = ctx.NetworkHeader()
	assert.True(t, ok)
	assert.Equal(t, uint32(40), ctx.Len())
}

func TestMDSetWindowRejectsInvalid(t *testing.T) {
	md := NewMD(make([]byte, 10))
	assert.Error(t, md.SetWindow(5, 4))
	assert.Error(t, md.SetWindow(0, 11))
	assert.NoError(t, md.SetWindow(10, 10))
	assert.Equal(t, uint32(0), NewContext(md).Len())

	_, err := NewMDWithHeadroom(make([]byte, 4), 5)
	assert.Error(t, err)
}

func TestMDReset(t *testing.T) {
	md := NewMD(make([]byte, 10))
	md.Lane = 3
	md.IngressIfindex = 7
	require.NoError(t, md.SetWindow(2, 8))

	md.Reset(make([]byte, 20))
	assert.Equal(t, uint32(0), md.Data())
	assert.Equal(t, uint32(20), md.DataEnd())
	assert.Equal(t, uint32(0), md.Lane)
	assert.Equal(t, uint32(0), md.IngressIfindex)
}

func TestFitsOverflow(t *testing.T) {
	_, ok := fits(0xFFFFFFF0, 0x20, 0xFFFFFFFF)
	assert.False(t, ok)

	end, ok := fits(10, 4, 14)
	assert.True(t, ok)
	assert.Equal(t, uint32(14), end)

	_, ok = fits(10, 5, 14)
	assert.False(t, ok)
}

func TestProgramFunc(t *testing.T) {
	p := ProgramFunc("pass-all", func(*Context) core.Action { return core.ActionPass })
	assert.Equal(t, "pass-all", p.Name())
	assert.Equal(t, core.ActionPass, p.Run(NewContext(NewMD(nil))))
}
