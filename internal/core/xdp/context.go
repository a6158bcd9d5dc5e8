package xdp

// Context is the entry point of one invocation. It walks the header chain
// of the descriptor's data window: link, network, transport, payload.
//
// Every step re-reads data and data_end from the descriptor and returns
// ok == false when a header does not fit or the protocol is not handled.
// Views and cursors obtained from a Context must not be used after the
// invocation returns.
type Context struct {
	md *MD
}

// NewContext wraps a descriptor for one invocation.
func NewContext(md *MD) *Context {
	return &Context{md: md}
}

// MD returns the underlying descriptor.
func (c *Context) MD() *MD { return c.md }

// Lane returns the delivery lane of the executing invocation.
func (c *Context) Lane() uint32 { return c.md.Lane }

// Len returns the size of the data window.
func (c *Context) Len() uint32 {
	return c.md.dataEnd - c.md.data
}

// Head returns a cursor at the start of the data window.
func (c *Context) Head() Data {
	return Data{md: c.md, base: c.md.data}
}

// header validates n bytes at base against the current window.
func (c *Context) header(base, n uint32) (view, bool) {
	data, end := c.md.data, c.md.dataEnd
	if base < data {
		return view{}, false
	}
	next, ok := fits(base, n, end)
	if !ok {
		return view{}, false
	}
	return view{b: c.md.frame[base:next:next], pos: base, off: base - data}, true
}

// LinkHeader returns the Ethernet header at the start of the window.
func (c *Context) LinkHeader() (EthHdr, bool) {
	v, ok := c.header(c.md.data, EthHdrLen)
	if !ok {
		return EthHdr{}, false
	}
	return EthHdr{v}, true
}

// NetworkHeader returns the IPv4 header following the Ethernet header.
// Frames with any other EtherType have no network header.
func (c *Context) NetworkHeader() (IPHdr, bool) {
	eth, ok := c.LinkHeader()
	if !ok {
		return IPHdr{}, false
	}
	if eth.b[12] != EthPIP>>8 || eth.b[13] != EthPIP&0xFF {
		return IPHdr{}, false
	}
	v, ok := c.header(eth.end(), IPHdrLen)
	if !ok {
		return IPHdr{}, false
	}
	return IPHdr{v}, true
}

// TransportHeader returns the TCP or UDP header following the IPv4 header.
// The transport header starts at the end of the fixed iphdr layout.
func (c *Context) TransportHeader() (Transport, bool) {
	ip, ok := c.NetworkHeader()
	if !ok {
		return Transport{}, false
	}

	var (
		kind TransportKind
		size uint32
	)
	switch ip.Protocol() {
	case IPProtoTCP:
		kind, size = TransportTCP, TCPHdrLen
	case IPProtoUDP:
		kind, size = TransportUDP, UDPHdrLen
	default:
		return Transport{}, false
	}

	v, ok := c.header(ip.end(), size)
	if !ok {
		return Transport{}, false
	}
	return Transport{kind: kind, hdr: v}, true
}

// Payload returns a cursor positioned right after the transport header.
// No length is checked here; the cursor checks lazily.
func (c *Context) Payload() (Data, bool) {
	t, ok := c.TransportHeader()
	if !ok {
		return Data{}, false
	}
	return Data{md: c.md, base: t.hdr.end()}, true
}
