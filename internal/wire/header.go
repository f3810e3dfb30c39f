package wire

import "github.com/pkg/errors"

// Header holds the metadata fields common to every word.
type Header struct {
	ModType     ModType
	Shift       uint8
	Mode        Mode
	Count       uint8
	Channel     uint8
	WaitTrigger bool
	EnableMask  uint8
}

// Header decodes the metadata fields of w.
func (w Word) Header() Header {
	return Header{
		ModType:     ModType(w.Field(ModTypeLSB, ModTypeWidth)),
		Shift:       uint8(w.Field(ShiftLSB, ShiftWidth)),
		Mode:        Mode(w.Field(ModeLSB, ModeWidth)),
		Count:       uint8(w.Field(CountLSB, CountWidth)),
		Channel:     uint8(w.Field(ChannelLSB, ChannelWidth)),
		WaitTrigger: w.Field(WaitTrigLSB, 1) == 1,
		EnableMask:  uint8(w.Field(OutputEnableLSB, OutputEnableWidth)),
	}
}

// WithHeader returns w with every metadata field replaced by h.
func (w Word) WithHeader(h Header) (Word, error) {
	var err error
	trig := uint64(0)
	if h.WaitTrigger {
		trig = 1
	}
	fields := []struct {
		name  string
		lsb   uint
		width uint
		v     uint64
	}{
		{"mod_type", ModTypeLSB, ModTypeWidth, uint64(h.ModType)},
		{"shift", ShiftLSB, ShiftWidth, uint64(h.Shift)},
		{"mode", ModeLSB, ModeWidth, uint64(h.Mode)},
		{"count", CountLSB, CountWidth, uint64(h.Count)},
		{"channel", ChannelLSB, ChannelWidth, uint64(h.Channel)},
		{"wait_trigger", WaitTrigLSB, 1, trig},
		{"enable_mask", OutputEnableLSB, OutputEnableWidth, uint64(h.EnableMask)},
	}
	for _, f := range fields {
		if w, err = w.setChecked(f.name, f.lsb, f.width, f.v); err != nil {
			return w, err
		}
	}
	return w, nil
}

// Payload is the bypass body of a pulse word: a duration in clock cycles and
// four fixed-point spline coefficients, U[0] being the constant term.
type Payload struct {
	Duration int64
	U        [4]int64
}

// Payload decodes the bypass body of w. Words fetched from the pulse table
// carry the same body, whatever their mode field says.
func (w Word) Payload() Payload {
	return Payload{
		Duration: w.signedField(DurLSB),
		U: [4]int64{
			w.signedField(U0LSB),
			w.signedField(U1LSB),
			w.signedField(U2LSB),
			w.signedField(U3LSB),
		},
	}
}

// PackPulse encodes a pulse word with the given header and body.
func PackPulse(h Header, p Payload) (Word, error) {
	if p.Duration < 0 {
		return Word{}, errors.Wrapf(ErrFieldOverflow, "duration=%d is negative", p.Duration)
	}
	w, err := Word{}.WithHeader(h)
	if err != nil {
		return w, err
	}
	if w, err = w.withSigned("duration", DurLSB, p.Duration); err != nil {
		return w, err
	}
	for i, lsb := range []uint{U0LSB, U1LSB, U2LSB, U3LSB} {
		if w, err = w.withSigned(coeffNames[i], lsb, p.U[i]); err != nil {
			return w, err
		}
	}
	return w, nil
}

// PackBypass encodes a word for direct streaming, forcing the bypass mode.
func PackBypass(h Header, p Payload) (Word, error) {
	h.Mode = ModeBypass
	return PackPulse(h, p)
}

var coeffNames = [4]string{"U0", "U1", "U2", "U3"}
