package timing

import (
	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// Stream turns a circuit tree into time-ordered bypass word lists, one per
// board of wire.ChannelsPerBoard channels. Words carry board-local
// channels, so each board's list is sorted on its own. Loops are fully
// unrolled since a bypass stream has no repeat mechanism. When delays is
// non-nil every triggered segment receives its channel's delay. Only the
// selected channels are emitted; nil selects every channel. Boards without
// a selected channel get an empty list.
func Stream(nodes []ir.Node, channels int, delays *DelayMap, selected []int) ([][]wire.Word, error) {
	if delays != nil {
		nodes = ir.ApplyDelays(nodes, delays.Delay)
	}
	streams := ir.Streams(ir.Unroll(nodes), channels)
	if selected == nil {
		selected = make([]int, channels)
		for ch := range selected {
			selected[ch] = ch
		}
	}

	boards := (channels + wire.ChannelsPerBoard - 1) / wire.ChannelsPerBoard
	stamped := make([][]TimeStampedWord, boards)
	s := NewStamper()
	for _, ch := range selected {
		if ch < 0 || ch >= channels {
			return nil, errors.Errorf("channel %d out of range for %d channels", ch, channels)
		}
		b := ch / wire.ChannelsPerBoard
		for _, seg := range streams[ch] {
			words, err := seg.Words(true)
			if err != nil {
				return nil, errors.Wrapf(err, "channel %d", ch)
			}
			for _, w := range words {
				t, err := s.Next(w, ch)
				if err != nil {
					return nil, err
				}
				stamped[b] = append(stamped[b], t)
			}
		}
	}

	out := make([][]wire.Word, boards)
	for b := range stamped {
		Sort(stamped[b])
		out[b] = Words(stamped[b])
	}
	return out, nil
}
