package emulator

import "github.com/haikusw/JaqalPaw/internal/wire"

// Key identifies one output stream.
type Key struct {
	Channel int
	ModType wire.ModType
}

// Segment describes one decoded pulse of a stream.
type Segment struct {
	Start       float64 // seconds
	Cycles      int64
	U           [4]int64
	Shift       uint8
	WaitTrigger bool
	EnableMask  uint8
}

// Record is the decoded waveform of one stream. Time, Value, WaitTrigger
// and EnableMask are parallel and always the same length; the first point
// is the stream's state before its first pulse, at t=0.
type Record struct {
	Time        []float64 // seconds
	Value       []float64 // physical units of the modulation type
	WaitTrigger []bool
	EnableMask  []uint8
	Segments    []Segment
}

func newRecord(waitTrigger bool, enableMask uint8) *Record {
	return &Record{
		Time:        []float64{0},
		Value:       []float64{0},
		WaitTrigger: []bool{waitTrigger},
		EnableMask:  []uint8{enableMask},
	}
}

// End is the time of the last point.
func (r *Record) End() float64 {
	return r.Time[len(r.Time)-1]
}

// appendSamples adds one pulse's samples. The value held before the pulse
// is replaced by the pulse's first sample, and the last sample is repeated
// so the record can be drawn as a step plot.
func (r *Record) appendSamples(samples []float64, waitTrigger bool, enableMask uint8) {
	if len(samples) == 0 {
		return
	}
	start := r.End()
	for i := range samples {
		r.Time = append(r.Time, start+Seconds(int64(i+1)))
	}
	r.Value = append(r.Value[:len(r.Value)-1], samples...)
	r.Value = append(r.Value, samples[len(samples)-1])
	for i := range samples {
		r.WaitTrigger = append(r.WaitTrigger, waitTrigger && i == 0)
		r.EnableMask = append(r.EnableMask, enableMask)
	}
}

// appendStep adds a pulse as a single held point.
func (r *Record) appendStep(cycles int64, value float64, waitTrigger bool, enableMask uint8) {
	r.Time = append(r.Time, r.End()+Seconds(cycles))
	r.Value = append(r.Value, value)
	r.WaitTrigger = append(r.WaitTrigger, waitTrigger)
	r.EnableMask = append(r.EnableMask, enableMask)
}
