package ir

import "github.com/pkg/errors"

// GateSlice holds, for one circuit step, the ordered segments of every
// channel. Channels are dense: 0..Channels()-1.
type GateSlice struct {
	channels [][]PulseSegment
}

// NewGateSlice returns an empty slice over n channels.
func NewGateSlice(n int) *GateSlice {
	return &GateSlice{channels: make([][]PulseSegment, n)}
}

// Channels is the number of channels the slice spans.
func (g *GateSlice) Channels() int {
	return len(g.channels)
}

// Add appends seg to its channel. It is meant for use while a slice is
// being built; finished slices are not mutated.
func (g *GateSlice) Add(seg PulseSegment) error {
	if seg.Channel >= len(g.channels) || seg.Channel < 0 {
		return errors.Errorf("channel %d out of range for %d channels", seg.Channel, len(g.channels))
	}
	if err := seg.Validate(); err != nil {
		return err
	}
	g.channels[seg.Channel] = append(g.channels[seg.Channel], seg)
	return nil
}

// Segments returns the segments of channel ch. The result must not be
// modified.
func (g *GateSlice) Segments(ch int) []PulseSegment {
	if ch < 0 || ch >= len(g.channels) {
		return nil
	}
	return g.channels[ch]
}

// Duration is the total length of channel ch in clock cycles.
func (g *GateSlice) Duration(ch int) int64 {
	var total int64
	for _, s := range g.Segments(ch) {
		total += s.Duration
	}
	return total
}

// MaxDuration is the length of the longest channel.
func (g *GateSlice) MaxDuration() int64 {
	var longest int64
	for ch := range g.channels {
		longest = max(longest, g.Duration(ch))
	}
	return longest
}

// Merge returns the per-channel union of g and other: other's segments
// follow g's on every channel.
func (g *GateSlice) Merge(other *GateSlice) *GateSlice {
	out := NewGateSlice(max(len(g.channels), len(other.channels)))
	for ch := range out.channels {
		segs := make([]PulseSegment, 0, len(g.Segments(ch))+len(other.Segments(ch)))
		segs = append(segs, g.Segments(ch)...)
		out.channels[ch] = append(segs, other.Segments(ch)...)
	}
	return out
}

// MakeDurationsEqual returns a copy of g in which every channel shorter than
// the longest one is padded with a trailing Nop.
func (g *GateSlice) MakeDurationsEqual() *GateSlice {
	return g.pad(func(int) bool { return true })
}

// PadChannels is MakeDurationsEqual restricted to the channels in active.
// Other channels are copied unchanged.
func (g *GateSlice) PadChannels(active map[int]bool) *GateSlice {
	return g.pad(func(ch int) bool { return active[ch] })
}

func (g *GateSlice) pad(active func(ch int) bool) *GateSlice {
	longest := g.MaxDuration()
	out := NewGateSlice(len(g.channels))
	for ch, segs := range g.channels {
		out.channels[ch] = append([]PulseSegment(nil), segs...)
		if gap := longest - g.Duration(ch); gap > 0 && active(ch) {
			out.channels[ch] = append(out.channels[ch], Nop(ch, gap))
		}
	}
	return out
}

// WithDelays returns a copy of g in which every triggered segment carries
// the delay of its channel.
func (g *GateSlice) WithDelays(delay func(channel int) int64) *GateSlice {
	out := NewGateSlice(len(g.channels))
	for ch, segs := range g.channels {
		out.channels[ch] = make([]PulseSegment, len(segs))
		for i, s := range segs {
			if s.WaitTrigger {
				s = s.WithDelay(delay(ch))
			}
			out.channels[ch][i] = s
		}
	}
	return out
}
