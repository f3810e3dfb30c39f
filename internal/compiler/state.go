package compiler

import (
	"slices"

	"fortio.org/safecast"
	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// channelState is the dedup state of one channel.
type channelState struct {
	gates   map[string][]ir.PulseSegment // unique sequences by hash
	weights map[string]int               // executed count, loops multiplied out
	order   []string                     // hashes in first-encounter order
	hashes  []string                     // executed sequence, loops repeated
	ranked  []string                     // gate id -> hash
	ids     map[string]uint16            // hash -> gate id
}

func newChannelState() *channelState {
	return &channelState{
		gates:   make(map[string][]ir.PulseSegment),
		weights: make(map[string]int),
		ids:     make(map[string]uint16),
	}
}

func (c *channelState) observe(hash string, segs []ir.PulseSegment, reps int) {
	if _, ok := c.gates[hash]; !ok {
		c.gates[hash] = segs
		c.order = append(c.order, hash)
	}
	c.weights[hash] += reps
}

// State holds the per-channel gate definitions of one compilation. It is
// rebuilt from scratch by every Compile.
type State struct {
	channels []*channelState
}

func newState(channels int) *State {
	s := &State{channels: make([]*channelState, channels)}
	for ch := range s.channels {
		s.channels[ch] = newChannelState()
	}
	return s
}

// build walks the tree and ranks the gates it found.
func (s *State) build(nodes []ir.Node) error {
	seq := make([][]string, len(s.channels))
	if err := s.walk(nodes, seq, 1); err != nil {
		return err
	}
	for ch, c := range s.channels {
		c.hashes = seq[ch]
		if err := c.rank(ch); err != nil {
			return err
		}
	}
	return nil
}

// walk appends the hashes of executed sequences to seq. Gates inside loops
// weigh reps times the loop count; their hashes are repeated only once the
// loop body has been walked.
func (s *State) walk(nodes []ir.Node, seq [][]string, reps int) error {
	for _, n := range nodes {
		switch v := n.(type) {
		case ir.GateNode:
			for ch, c := range s.channels {
				segs := v.Slice.Segments(ch)
				if len(segs) == 0 {
					continue
				}
				h, err := ir.GateHash(segs)
				if err != nil {
					return errors.Wrapf(err, "channel %d", ch)
				}
				c.observe(h, segs, reps)
				seq[ch] = append(seq[ch], h)
			}
		case ir.BlockNode:
			if err := s.walk(v.Children, seq, reps); err != nil {
				return err
			}
		case ir.LoopNode:
			inner := make([][]string, len(s.channels))
			if err := s.walk(v.Body, inner, reps*v.Repeats); err != nil {
				return err
			}
			for ch := range seq {
				for range v.Repeats {
					seq[ch] = append(seq[ch], inner[ch]...)
				}
			}
		}
	}
	return nil
}

// rank assigns gate ids by descending weight. The sort is stable over
// first-encounter order.
func (c *channelState) rank(ch int) error {
	if len(c.order) > wire.MaxGates {
		return overflow(ch, "%d unique gates exceed the gate table size %d", len(c.order), wire.MaxGates)
	}
	c.ranked = slices.Clone(c.order)
	slices.SortStableFunc(c.ranked, func(a, b string) int {
		return c.weights[b] - c.weights[a]
	})
	for gid, h := range c.ranked {
		id, err := safecast.Conv[uint16](gid)
		if err != nil {
			return errors.Wrap(err, "gate id")
		}
		c.ids[h] = id
	}
	return nil
}

// Channels is the number of channels tracked.
func (s *State) Channels() int {
	return len(s.channels)
}

// UniqueGates is the number of distinct gate definitions of ch.
func (s *State) UniqueGates(ch int) int {
	return len(s.channels[ch].ranked)
}

// Weight is the number of times the sequence with the given hash runs on ch.
func (s *State) Weight(ch int, hash string) int {
	return s.channels[ch].weights[hash]
}

// GateID returns the id assigned to the sequence with the given hash.
func (s *State) GateID(ch int, hash string) (uint16, bool) {
	id, ok := s.channels[ch].ids[hash]
	return id, ok
}

// Gate returns the segments of gate gid on ch.
func (s *State) Gate(ch int, gid uint16) ([]ir.PulseSegment, bool) {
	c := s.channels[ch]
	if int(gid) >= len(c.ranked) {
		return nil, false
	}
	return c.gates[c.ranked[gid]], true
}

// Sequence is the executed gate id sequence of ch, loops repeated.
func (s *State) Sequence(ch int) []uint16 {
	c := s.channels[ch]
	out := make([]uint16, len(c.hashes))
	for i, h := range c.hashes {
		out[i] = c.ids[h]
	}
	return out
}
