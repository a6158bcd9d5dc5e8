package xdp

import "encoding/binary"

// TransportKind tags the variant held by a Transport.
type TransportKind uint8

const (
	TransportTCP TransportKind = iota + 1
	TransportUDP
)

func (k TransportKind) String() string {
	switch k {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// Transport is a validated TCP or UDP header. The walker only hands out
// Transports whose whole header lies inside the data window.
type Transport struct {
	kind TransportKind
	hdr  view
}

// Kind returns which header the Transport holds.
func (t Transport) Kind() TransportKind { return t.kind }

// Protocol returns the IP protocol number of the variant.
func (t Transport) Protocol() uint8 {
	switch t.kind {
	case TransportTCP:
		return IPProtoTCP
	case TransportUDP:
		return IPProtoUDP
	default:
		return 0
	}
}

// Source returns the source port in host order. TCP and UDP both lead with
// the two port fields. The zero Transport reports 0.
func (t Transport) Source() uint16 {
	if len(t.hdr.b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint16(t.hdr.b[0:2])
}

// Dest returns the destination port in host order, or 0 for the zero
// Transport.
func (t Transport) Dest() uint16 {
	if len(t.hdr.b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint16(t.hdr.b[2:4])
}

// Offset returns the header's offset from the start of the data window.
func (t Transport) Offset() uint32 { return t.hdr.off }

// Len returns the size of the header layout.
func (t Transport) Len() uint32 { return t.hdr.Len() }

// TCP returns the TCP view when the variant is TCP.
func (t Transport) TCP() (TCPHdr, bool) {
	if t.kind != TransportTCP {
		return TCPHdr{}, false
	}
	return TCPHdr{t.hdr}, true
}

// UDP returns the UDP view when the variant is UDP.
func (t Transport) UDP() (UDPHdr, bool) {
	if t.kind != TransportUDP {
		return UDPHdr{}, false
	}
	return UDPHdr{t.hdr}, true
}
