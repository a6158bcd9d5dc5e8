package runtime

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/serialx/hashring"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/xdp"
)

// Dispatch strategy names.
const (
	DispatchFlowHash       = "flow-hash"
	DispatchRoundRobin     = "round-robin"
	DispatchConsistentHash = "consistent-hash"
)

// DispatchStrategy determines which lane runs a packet.
type DispatchStrategy interface {
	// Dispatch returns the lane index (0-based) for the given packet.
	// lanes is guaranteed to be > 0.
	Dispatch(pkt core.RawPacket, lanes int) int

	// Name returns the strategy name for logging/metrics.
	Name() string
}

// FlowHashStrategy distributes packets by flow-hash (5-tuple FNV-1a).
// Same flow always goes to the same lane. Frames without a TCP/UDP header
// all land on lane 0.
type FlowHashStrategy struct{}

func (s *FlowHashStrategy) Dispatch(pkt core.RawPacket, lanes int) int {
	key, ok := flowKey(pkt.Data)
	if !ok {
		return 0
	}
	h := fnv.New32a()
	h.Write(key[:])
	return int(h.Sum32() % uint32(lanes))
}

func (s *FlowHashStrategy) Name() string { return DispatchFlowHash }

// RoundRobinStrategy distributes packets in round-robin order.
// Provides even load distribution but no flow affinity.
type RoundRobinStrategy struct {
	counter atomic.Uint64
}

func (s *RoundRobinStrategy) Dispatch(_ core.RawPacket, lanes int) int {
	return int((s.counter.Add(1) - 1) % uint64(lanes))
}

func (s *RoundRobinStrategy) Name() string { return DispatchRoundRobin }

// ConsistentHashStrategy maps flows onto a hash ring of lanes, so changing
// the lane count only moves the flows of the added or removed lanes.
type ConsistentHashStrategy struct {
	mu    sync.Mutex
	lanes int
	ring  *hashring.HashRing
}

func (s *ConsistentHashStrategy) Dispatch(pkt core.RawPacket, lanes int) int {
	key, ok := flowKey(pkt.Data)
	if !ok {
		return 0
	}

	ring := s.ringFor(lanes)
	node, ok := ring.GetNode(string(key[:]))
	if !ok {
		return 0
	}
	idx, err := strconv.Atoi(node[len(laneNodePrefix):])
	if err != nil || idx >= lanes {
		return 0
	}
	return idx
}

func (s *ConsistentHashStrategy) Name() string { return DispatchConsistentHash }

const laneNodePrefix = "lane-"

func (s *ConsistentHashStrategy) ringFor(lanes int) *hashring.HashRing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil || s.lanes != lanes {
		nodes := make([]string, lanes)
		for i := range nodes {
			nodes[i] = laneNodePrefix + strconv.Itoa(i)
		}
		s.ring = hashring.New(nodes)
		s.lanes = lanes
	}
	return s.ring
}

// NewDispatchStrategy creates a dispatch strategy by name.
// Supported strategies: "flow-hash" (default), "round-robin", "consistent-hash".
func NewDispatchStrategy(name string) (DispatchStrategy, error) {
	switch name {
	case "", DispatchFlowHash:
		return &FlowHashStrategy{}, nil
	case DispatchRoundRobin:
		return &RoundRobinStrategy{}, nil
	case DispatchConsistentHash:
		return &ConsistentHashStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown dispatch strategy %q", core.ErrConfigInvalid, name)
	}
}

const flowKeyLen = 13

// flowKey extracts saddr, daddr, sport, dport and protocol with the same
// walker the programs use.
func flowKey(frame []byte) ([flowKeyLen]byte, bool) {
	var key [flowKeyLen]byte
	var md xdp.MD
	md.Reset(frame)
	ctx := xdp.NewContext(&md)

	ip, ok := ctx.NetworkHeader()
	if !ok {
		return key, false
	}
	tr, ok := ctx.TransportHeader()
	if !ok {
		return key, false
	}
	saddr, daddr := ip.SaddrRaw(), ip.DaddrRaw()
	copy(key[0:4], saddr[:])
	copy(key[4:8], daddr[:])
	binary.BigEndian.PutUint16(key[8:10], tr.Source())
	binary.BigEndian.PutUint16(key[10:12], tr.Dest())
	key[12] = tr.Protocol()
	return key, true
}
