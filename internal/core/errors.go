// Package core defines sentinel errors.
package core

import "errors"

var (
	// Event channel errors
	ErrChannelFull    = errors.New("xdpwalk: event channel full")
	ErrChannelClosed  = errors.New("xdpwalk: event channel closed")
	ErrLaneOutOfRange = errors.New("xdpwalk: lane out of range")
	ErrRecordLayout   = errors.New("xdpwalk: record type has no fixed layout")
	ErrShortSample    = errors.New("xdpwalk: sample shorter than record")

	// Descriptor errors
	ErrInvalidWindow = errors.New("xdpwalk: invalid data window")

	// Runtime errors
	ErrRuntimeStopped = errors.New("xdpwalk: runtime stopped")
	ErrUnknownProgram = errors.New("xdpwalk: unknown program")

	// Configuration errors
	ErrConfigInvalid = errors.New("xdpwalk: invalid configuration")
)
