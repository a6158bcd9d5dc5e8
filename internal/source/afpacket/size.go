package afpacket

import "fmt"

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded
	maxBlockSize     = 4 * 1024 * 1024
)

// ringGeometry picks frame size, block size and block count for a
// PACKET_MMAP ring of roughly bufferMB megabytes. frameSize is a multiple of
// TPACKET_ALIGNMENT and blockSize a multiple of the page size holding at
// least one frame. When the exact common multiple of the two would exceed
// 4 MB the block is capped and its tail stays unused.
func ringGeometry(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		blockSize = max(alignUp(frameSize, pageSize), maxBlockSize/pageSize*pageSize)
	}

	numBlocks = max(bufferMB*1024*1024/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
