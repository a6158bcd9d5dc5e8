package afpacket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/xdpwalk/internal/core"
)

func TestRingGeometry(t *testing.T) {
	tests := []struct {
		name      string
		bufferMB  int
		snapLen   int
		pageSize  int
		wantFrame int
		wantBlock int
		wantNum   int
	}{
		{name: "ethernet mtu", bufferMB: 64, snapLen: 1500, pageSize: 4096, wantFrame: 1552, wantBlock: 397312, wantNum: 168},
		{name: "full snap capped", bufferMB: 64, snapLen: 65535, pageSize: 4096, wantFrame: 65600, wantBlock: 4194304, wantNum: 16},
		{name: "tiny buffer", bufferMB: 1, snapLen: 65535, pageSize: 4096, wantFrame: 65600, wantBlock: 4194304, wantNum: 1},
		{name: "aligned frame", bufferMB: 8, snapLen: 204, pageSize: 4096, wantFrame: 256, wantBlock: 4096, wantNum: 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, block, num, err := ringGeometry(tt.bufferMB, tt.snapLen, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrame, frame)
			assert.Equal(t, tt.wantBlock, block)
			assert.Equal(t, tt.wantNum, num)

			assert.Zero(t, frame%tpacketAlignment)
			assert.Zero(t, block%tt.pageSize)
			assert.GreaterOrEqual(t, block, frame)
		})
	}
}

func TestRingGeometryInvalid(t *testing.T) {
	for _, args := range [][3]int{{0, 1500, 4096}, {64, 0, 4096}, {64, 1500, 0}, {64, 1500, 1000}} {
		_, _, _, err := ringGeometry(args[0], args[1], args[2])
		assert.Error(t, err, "%v", args)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := Config{Interface: "eth0"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, defaultSnapLen, cfg.SnapLen)
	assert.Equal(t, defaultBufferSizeMB, cfg.BufferSizeMB)
	assert.Equal(t, defaultPollTimeout, cfg.PollTimeout)
	assert.Equal(t, "hash", cfg.FanoutType)

	_, err = Config{}.withDefaults()
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = Config{Interface: "eth0", FanoutType: "random"}.withDefaults()
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
