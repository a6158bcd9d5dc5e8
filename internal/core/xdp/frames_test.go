package xdp

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	testSrcMAC = net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	testDstMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testSrcIP  = net.IP{192, 168, 1, 1}
	testDstIP  = net.IP{192, 168, 1, 2}
)

// serialize builds a frame from layers and trims the Ethernet minimum-size
// padding so the frame is exactly want bytes long.
func serialize(t *testing.T, want int, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	out := buf.Bytes()
	require.GreaterOrEqual(t, len(out), want)
	return append([]byte(nil), out[:want]...)
}

func ethLayer(etherType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: etherType}
}

func ipLayer(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: proto, SrcIP: testSrcIP, DstIP: testDstIP}
}

func tcpFrame(t *testing.T, sport, dport uint16, payload []byte) []byte {
	t.Helper()
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport), Seq: 1, Ack: 2, ACK: true, PSH: true, Window: 8192}
	return serialize(t, EthHdrLen+IPHdrLen+TCPHdrLen+len(payload),
		ethLayer(layers.EthernetTypeIPv4), ipLayer(layers.IPProtocolTCP), tcp, gopacket.Payload(payload))
}

func udpFrame(t *testing.T, sport, dport uint16, payload []byte) []byte {
	t.Helper()
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	return serialize(t, EthHdrLen+IPHdrLen+UDPHdrLen+len(payload),
		ethLayer(layers.EthernetTypeIPv4), ipLayer(layers.IPProtocolUDP), udp, gopacket.Payload(payload))
}

func icmpFrame(t *testing.T) []byte {
	t.Helper()
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return serialize(t, EthHdrLen+IPHdrLen+8,
		ethLayer(layers.EthernetTypeIPv4), ipLayer(layers.IPProtocolICMPv4), icmp)
}

func arpFrame(t *testing.T) []byte {
	t.Helper()
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   testSrcMAC,
		SourceProtAddress: testSrcIP.To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    testDstIP.To4(),
	}
	// Keep the padding: an ARP frame is as long as a TCP one.
	return serialize(t, 60, ethLayer(layers.EthernetTypeARP), arp)
}
