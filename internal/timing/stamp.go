package timing

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// TimeStampedWord is a word placed on its stream's time line. Start is the
// end of the previous word of the same (channel, modulation type) stream.
type TimeStampedWord struct {
	Word     wire.Word
	Channel  int
	ModType  wire.ModType
	Duration int64 // clock cycles
	Start    int64 // clock cycles
}

// End is the cycle at which the word's pulse finishes.
func (t TimeStampedWord) End() int64 {
	return t.Start + t.Duration
}

// AdditionError rejects chaining words of different channels.
type AdditionError struct {
	Channel, Other int
}

func (e *AdditionError) Error() string {
	return fmt.Sprintf("cannot chain channel %d word after channel %d word", e.Channel, e.Other)
}

// After returns t moved to start where prev ends.
func (t TimeStampedWord) After(prev TimeStampedWord) (TimeStampedWord, error) {
	if t.Channel != prev.Channel {
		return TimeStampedWord{}, &AdditionError{Channel: t.Channel, Other: prev.Channel}
	}
	t.Start = prev.End()
	return t, nil
}

type streamKey struct {
	channel int
	mod     wire.ModType
}

// Stamper assigns contiguous start times per (channel, modulation type).
type Stamper struct {
	last map[streamKey]TimeStampedWord
}

// NewStamper returns a stamper with every stream starting at 0.
func NewStamper() *Stamper {
	return &Stamper{last: make(map[streamKey]TimeStampedWord)}
}

// Next stamps w as the next word of its stream on channel.
func (s *Stamper) Next(w wire.Word, channel int) (TimeStampedWord, error) {
	h := w.Header()
	t := TimeStampedWord{
		Word:     w,
		Channel:  channel,
		ModType:  h.ModType,
		Duration: w.Payload().Duration,
	}
	key := streamKey{channel: channel, mod: h.ModType}
	if prev, ok := s.last[key]; ok {
		var err error
		if t, err = t.After(prev); err != nil {
			return t, err
		}
	}
	s.last[key] = t
	return t, nil
}

// Stamp stamps raw words in order, reading each word's channel from its
// multiplexer field.
func Stamp(words []wire.Word) ([]TimeStampedWord, error) {
	s := NewStamper()
	out := make([]TimeStampedWord, 0, len(words))
	for _, w := range words {
		t, err := s.Next(w, int(w.Header().Channel))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Sort orders words by start time, then modulation type, then channel.
// Equal keys keep their input order. words must belong to one board, so
// the channel order is the board-local one.
func Sort(words []TimeStampedWord) {
	slices.SortStableFunc(words, func(a, b TimeStampedWord) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.ModType, b.ModType),
			cmp.Compare(a.Channel, b.Channel),
		)
	})
}

// Words strips the time stamps.
func Words(stamped []TimeStampedWord) []wire.Word {
	out := make([]wire.Word, len(stamped))
	for i, t := range stamped {
		out[i] = t.Word
	}
	return out
}

// TimeSort stamps raw words and returns them in time order.
func TimeSort(words []wire.Word) ([]wire.Word, error) {
	stamped, err := Stamp(words)
	if err != nil {
		return nil, err
	}
	Sort(stamped)
	return Words(stamped), nil
}
