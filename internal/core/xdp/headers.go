package xdp

import (
	"encoding/binary"
	"net/netip"
)

// Header sizes of the fixed layouts in <linux/if_ether.h>, <linux/ip.h>,
// <linux/tcp.h> and <linux/udp.h>.
const (
	EthHdrLen = 14
	IPHdrLen  = 20
	TCPHdrLen = 20
	UDPHdrLen = 8
)

// EtherType values.
const (
	EthPIP   = 0x0800
	EthPARP  = 0x0806
	EthPIPv6 = 0x86DD
)

// IP protocol numbers.
const (
	IPProtoICMP = 1
	IPProtoTCP  = 6
	IPProtoUDP  = 17
)

// TCP flag bits (byte 13 of the header).
const (
	TCPFlagFIN = 0x01
	TCPFlagSYN = 0x02
	TCPFlagRST = 0x04
	TCPFlagPSH = 0x08
	TCPFlagACK = 0x10
	TCPFlagURG = 0x20
)

// view is a validated window of exactly one header. pos is the absolute
// frame offset of its first byte, off the offset relative to data when it
// was validated.
type view struct {
	b   []byte
	pos uint32
	off uint32
}

// Offset returns the header's offset from the start of the data window.
func (v view) Offset() uint32 { return v.off }

// Len returns the size of the header layout in bytes.
func (v view) Len() uint32 { return uint32(len(v.b)) }

func (v view) end() uint32 { return v.pos + uint32(len(v.b)) }

// EthHdr is a read-only view of struct ethhdr.
type EthHdr struct{ view }

// Dest returns the destination MAC address.
func (h EthHdr) Dest() [6]byte { return [6]byte(h.b[0:6]) }

// Source returns the source MAC address.
func (h EthHdr) Source() [6]byte { return [6]byte(h.b[6:12]) }

// Proto returns the EtherType in host order.
func (h EthHdr) Proto() uint16 { return binary.BigEndian.Uint16(h.b[12:14]) }

// IPHdr is a read-only view of struct iphdr.
type IPHdr struct{ view }

func (h IPHdr) Version() uint8 { return h.b[0] >> 4 }

// IHL returns the header length field in 32-bit words.
func (h IPHdr) IHL() uint8 { return h.b[0] & 0x0F }

// HeaderLen returns the on-wire header length in bytes, options included.
func (h IPHdr) HeaderLen() int { return int(h.IHL()) * 4 }

func (h IPHdr) TOS() uint8         { return h.b[1] }
func (h IPHdr) TotalLen() uint16   { return binary.BigEndian.Uint16(h.b[2:4]) }
func (h IPHdr) ID() uint16         { return binary.BigEndian.Uint16(h.b[4:6]) }
func (h IPHdr) FragOff() uint16    { return binary.BigEndian.Uint16(h.b[6:8]) }
func (h IPHdr) TTL() uint8         { return h.b[8] }
func (h IPHdr) Protocol() uint8    { return h.b[9] }
func (h IPHdr) Checksum() uint16   { return binary.BigEndian.Uint16(h.b[10:12]) }
func (h IPHdr) Saddr() netip.Addr  { return netip.AddrFrom4([4]byte(h.b[12:16])) }
func (h IPHdr) Daddr() netip.Addr  { return netip.AddrFrom4([4]byte(h.b[16:20])) }
func (h IPHdr) SaddrRaw() [4]byte  { return [4]byte(h.b[12:16]) }
func (h IPHdr) DaddrRaw() [4]byte  { return [4]byte(h.b[16:20]) }
func (h IPHdr) IsFragment() bool   { return h.FragOff()&0x3FFF != 0 }
func (h IPHdr) DontFragment() bool { return h.FragOff()&0x4000 != 0 }

// TCPHdr is a read-only view of struct tcphdr.
type TCPHdr struct{ view }

func (h TCPHdr) Source() uint16 { return binary.BigEndian.Uint16(h.b[0:2]) }
func (h TCPHdr) Dest() uint16   { return binary.BigEndian.Uint16(h.b[2:4]) }
func (h TCPHdr) Seq() uint32    { return binary.BigEndian.Uint32(h.b[4:8]) }
func (h TCPHdr) AckSeq() uint32 { return binary.BigEndian.Uint32(h.b[8:12]) }

// DataOffset returns the header length field in 32-bit words.
func (h TCPHdr) DataOffset() uint8 { return h.b[12] >> 4 }

// Flags returns the URG/ACK/PSH/RST/SYN/FIN bits.
func (h TCPHdr) Flags() uint8 { return h.b[13] & 0x3F }

func (h TCPHdr) Window() uint16   { return binary.BigEndian.Uint16(h.b[14:16]) }
func (h TCPHdr) Checksum() uint16 { return binary.BigEndian.Uint16(h.b[16:18]) }
func (h TCPHdr) UrgPtr() uint16   { return binary.BigEndian.Uint16(h.b[18:20]) }

// UDPHdr is a read-only view of struct udphdr.
type UDPHdr struct{ view }

func (h UDPHdr) Source() uint16   { return binary.BigEndian.Uint16(h.b[0:2]) }
func (h UDPHdr) Dest() uint16     { return binary.BigEndian.Uint16(h.b[2:4]) }
func (h UDPHdr) Length() uint16   { return binary.BigEndian.Uint16(h.b[4:6]) }
func (h UDPHdr) Checksum() uint16 { return binary.BigEndian.Uint16(h.b[6:8]) }
