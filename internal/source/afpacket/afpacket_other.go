//go:build !linux

package afpacket

import (
	"context"
	"errors"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/source"
)

var errUnsupported = errors.New("afpacket capture requires linux")

// Source is unavailable outside linux.
type Source struct{}

var _ source.Source = (*Source)(nil)

// New validates cfg and reports that live capture is unsupported.
func New(cfg Config) (*Source, error) {
	if _, err := cfg.withDefaults(); err != nil {
		return nil, err
	}
	return nil, errUnsupported
}

func (s *Source) Name() string                                         { return Name }
func (s *Source) Capture(context.Context, chan<- core.RawPacket) error { return errUnsupported }
func (s *Source) Stats() source.Stats                                  { return source.Stats{} }
func (s *Source) Close() error                                         { return nil }
