package xdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSliceExactLength(t *testing.T) {
	payload := []byte("0123456789")
	ctx := NewContext(NewMD(udpFrame(t, 1000, 2000, payload)))
	data, ok := ctx.Payload()
	require.True(t, ok)
	require.Equal(t, uint32(len(payload)), data.Len())
	assert.Equal(t, uint32(EthHdrLen+IPHdrLen+UDPHdrLen), data.Offset())

	for n := uint32(0); n <= data.Len()+4; n++ {
		b, ok := data.Slice(n)
		if n <= data.Len() {
			require.True(t, ok, "Slice(%d)", n)
			assert.Len(t, b, int(n))
			assert.Equal(t, payload[:n], b)
			assert.Equal(t, int(n), cap(b), "slice must not expose bytes past the request")
		} else {
			assert.False(t, ok, "Slice(%d)", n)
			assert.Nil(t, b)
		}
	}
}

func TestDataSliceOverflow(t *testing.T) {
	data, ok := NewContext(NewMD(tcpFrame(t, 1, 2, []byte{9}))).Payload()
	require.True(t, ok)
	_, ok = data.Slice(^uint32(0))
	assert.False(t, ok)
}

func TestDataTracksWindow(t *testing.T) {
	frame := tcpFrame(t, 80, 443, make([]byte, 20))
	md := NewMD(frame)
	data, ok := NewContext(md).Payload()
	require.True(t, ok)
	assert.Equal(t, uint32(20), data.Len())

	require.NoError(t, md.SetWindow(0, uint32(len(frame)-5)))
	assert.Equal(t, uint32(15), data.Len())
	_, ok = data.Slice(16)
	assert.False(t, ok)

	// Window shrunk below the cursor.
	require.NoError(t, md.SetWindow(0, 30))
	assert.Equal(t, uint32(0), data.Len())
	_, ok = data.Slice(1)
	assert.False(t, ok)
}

func TestHeadCursor(t *testing.T) {
	frame := tcpFrame(t, 80, 443, nil)
	head := NewContext(NewMD(frame)).Head()
	assert.Equal(t, uint32(0), head.Offset())
	assert.Equal(t, uint32(len(frame)), head.Len())

	b, ok := head.Slice(EthHdrLen)
	require.True(t, ok)
	assert.Equal(t, frame[:EthHdrLen], b)
}

func TestZeroData(t *testing.T) {
	var d Data
	assert.Equal(t, uint32(0), d.Offset())
	assert.Equal(t, uint32(0), d.Len())
	_, ok := d.Slice(0)
	assert.False(t, ok)
}
