// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is one captured frame handed from a source to a lane.
type RawPacket struct {
	Data           []byte    // Raw frame data, owned by the receiving lane once submitted
	Timestamp      time.Time // Capture timestamp (kernel timestamp preferred)
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length
	InterfaceIndex int       // Network interface index
}
