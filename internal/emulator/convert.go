package emulator

import (
	"math"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// Full scale of a 40-bit coefficient.
var fullScale = math.Exp2(wire.CoeffBits) - 1

// FrequencyMHz converts a raw frequency sample to MHz.
func FrequencyMHz(v float64) float64 {
	return v / fullScale * wire.ClockFrequency / 1e6
}

// AmplitudePercent converts a raw amplitude sample to percent of full
// scale. Only the top 16 bits reach the DAC.
func AmplitudePercent(v float64) float64 {
	return float64(int64(v)>>23) / (math.Exp2(16) - 1) * 200
}

// PhaseDegrees converts a raw phase or frame-rotation sample to degrees.
func PhaseDegrees(v float64) float64 {
	return v / fullScale * 360
}

// Convert applies the real-unit conversion of m to a raw sample.
func Convert(m wire.ModType, v float64) float64 {
	switch {
	case m.IsFrequency():
		return FrequencyMHz(v)
	case m.IsAmplitude():
		return AmplitudePercent(v)
	default:
		return PhaseDegrees(v)
	}
}

// Seconds converts a clock-cycle count to seconds.
func Seconds(cycles int64) float64 {
	return float64(cycles) * wire.ClockPeriod
}
