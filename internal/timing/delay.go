package timing

import (
	"math"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// ClockCycles converts seconds to the nearest whole number of clock cycles.
func ClockCycles(seconds float64) int64 {
	return int64(math.Round(seconds * wire.ClockFrequency))
}

// DelayMap holds the post-trigger delay of every channel, in clock cycles.
//
// A non-negative global delay applies to channel 0 only. A negative global
// delay applies its magnitude to every other channel and leaves channel 0
// undelayed. Set overrides single channels.
type DelayMap struct {
	channel0  int64
	others    int64
	overrides map[int]int64
}

// NewDelayMap builds the map for a global delay in clock cycles.
func NewDelayMap(global int64) *DelayMap {
	m := &DelayMap{overrides: make(map[int]int64)}
	if global < 0 {
		m.others = -global
	} else {
		m.channel0 = global
	}
	return m
}

// NewDelayMapSeconds builds the map for a global delay in seconds.
func NewDelayMapSeconds(global float64) *DelayMap {
	return NewDelayMap(ClockCycles(global))
}

// Set overrides the delay of one channel.
func (m *DelayMap) Set(channel int, cycles int64) {
	m.overrides[channel] = cycles
}

// Delay is the delay of channel.
func (m *DelayMap) Delay(channel int) int64 {
	if d, ok := m.overrides[channel]; ok {
		return d
	}
	if channel == 0 {
		return m.channel0
	}
	return m.others
}
