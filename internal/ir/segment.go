package ir

import (
	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// MinDuration is the shortest segment that reaches the hardware; anything
// of MinDuration cycles or less is treated as a no-op and dropped.
const MinDuration = 3

// DefaultEnableMask enables both outputs of a channel.
const DefaultEnableMask = 0b11

// PulseSegment is one continuous output directive for one channel and one
// modulation type. Segments are plain values: copying one yields an
// independent, equal segment, and every modifier returns a new value.
type PulseSegment struct {
	Channel     int          `json:"channel"`
	ModType     wire.ModType `json:"mod_type"`
	Duration    int64        `json:"duration"` // clock cycles
	U           [4]int64     `json:"u"`        // fixed-point spline terms, U[0] constant
	Shift       uint8        `json:"shift"`
	WaitTrigger bool         `json:"wait_trigger"`
	EnableMask  uint8        `json:"enable_mask"`
	Delay       int64        `json:"delay,omitempty"` // extra cycles after a trigger
}

// NewSegment builds a validated segment with both outputs enabled.
func NewSegment(channel int, mod wire.ModType, duration int64, u [4]int64) (PulseSegment, error) {
	s := PulseSegment{
		Channel:    channel,
		ModType:    mod,
		Duration:   duration,
		U:          u,
		EnableMask: DefaultEnableMask,
	}
	return s, s.Validate()
}

// Nop returns the padding segment used to equalize channel durations: a
// zero frame rotation with outputs left enabled.
func Nop(channel int, duration int64) PulseSegment {
	return PulseSegment{
		Channel:    channel,
		ModType:    wire.FrameRot0,
		Duration:   duration,
		EnableMask: DefaultEnableMask,
	}
}

// Validate checks that every field fits its place in a hardware word.
func (s PulseSegment) Validate() error {
	switch {
	case s.Channel < 0:
		return errors.Errorf("segment channel %d is negative", s.Channel)
	case s.ModType >= wire.NumModTypes:
		return errors.Errorf("segment modulation type %d out of range", s.ModType)
	case s.Duration < 0 || s.Duration > wire.MaxCoeff:
		return errors.Errorf("segment duration %d out of range", s.Duration)
	case s.Delay < 0 || s.Delay > wire.MaxCoeff:
		return errors.Errorf("segment delay %d out of range", s.Delay)
	case s.Shift >= 1<<wire.ShiftWidth:
		return errors.Errorf("segment shift %d out of range", s.Shift)
	case s.EnableMask >= 1<<wire.OutputEnableWidth:
		return errors.Errorf("segment enable mask %b out of range", s.EnableMask)
	}
	for i, u := range s.U {
		if u < wire.MinCoeff || u > wire.MaxCoeff {
			return errors.Errorf("segment U%d=%d out of range", i, u)
		}
	}
	return nil
}

// WithDelay returns a copy of s carrying the given post-trigger delay.
func (s PulseSegment) WithDelay(delay int64) PulseSegment {
	s.Delay = delay
	return s
}

// Negligible reports whether the segment is too short to be emitted.
func (s PulseSegment) Negligible() bool {
	return s.Duration <= MinDuration
}

func (s PulseSegment) canonical() map[string]any {
	return map[string]any{
		"channel":      s.Channel,
		"mod":          s.ModType.String(),
		"duration":     s.Duration,
		"u":            []any{s.U[0], s.U[1], s.U[2], s.U[3]},
		"shift":        s.Shift,
		"wait_trigger": s.WaitTrigger,
		"enable_mask":  s.EnableMask,
		"delay":        s.Delay,
	}
}

func (s PulseSegment) header(mode wire.Mode) wire.Header {
	return wire.Header{
		ModType:     s.ModType,
		Shift:       s.Shift,
		Mode:        mode,
		Channel:     uint8(s.Channel % wire.ChannelsPerBoard),
		WaitTrigger: s.WaitTrigger,
		EnableMask:  s.EnableMask,
	}
}

// Words binarizes the segment. With bypass set the words stream directly;
// otherwise they are pulse-table payloads. A triggered segment with a delay
// becomes a hold word at the segment's initial value that waits for the
// trigger, followed by the segment itself untriggered.
func (s PulseSegment) Words(bypass bool) ([]wire.Word, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	mode := wire.ModeProgramPulseTable
	if bypass {
		mode = wire.ModeBypass
	}

	var words []wire.Word
	main := s
	if s.WaitTrigger && s.Delay > 0 {
		hold, err := wire.PackPulse(s.header(mode), wire.Payload{
			Duration: s.Delay,
			U:        [4]int64{s.U[0]},
		})
		if err != nil {
			return nil, errors.Wrap(err, "delay word")
		}
		words = append(words, hold)
		main.WaitTrigger = false
	}

	w, err := wire.PackPulse(main.header(mode), wire.Payload{Duration: s.Duration, U: s.U})
	if err != nil {
		return nil, err
	}
	return append(words, w), nil
}
