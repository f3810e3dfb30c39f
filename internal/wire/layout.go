package wire

import (
	"fmt"

	"github.com/pkg/errors"
)

// Word size and field layout.
const (
	WordBytes = 32
	WordBits  = WordBytes * 8

	CoeffBits = 40
	U0LSB     = 0
	U1LSB     = 40
	U2LSB     = 80
	U3LSB     = 120
	DurLSB    = 160

	OutputEnableLSB   = 216
	OutputEnableWidth = 2
	WaitTrigLSB       = 218
	ChannelLSB        = 220
	ChannelWidth      = 3
	PulseAddrLSB      = 228
	CountLSB          = 240
	CountWidth        = 5
	ModeLSB           = 245
	ModeWidth         = 3
	ShiftLSB          = 248
	ShiftWidth        = 5
	ModTypeLSB        = 253
	ModTypeWidth      = 3

	// Sub-records never extend past this bit.
	PayloadBits = OutputEnableLSB
)

// Lookup-table address widths.
const (
	GateAddrBits  = 9
	SeqAddrBits   = 12
	PulseAddrBits = 12

	MaxGates      = 1 << GateAddrBits
	MaxSeqAddrs   = 1 << SeqAddrBits
	MaxPulseAddrs = 1 << PulseAddrBits

	GateEntryBits = 2*SeqAddrBits + GateAddrBits
	MapEntryBits  = PulseAddrBits + SeqAddrBits

	GateEntriesPerWord = PayloadBits / GateEntryBits
	MapEntriesPerWord  = PayloadBits / MapEntryBits
	GateIDsPerWord     = PayloadBits / GateAddrBits
)

// ChannelsPerBoard is the number of channels one board multiplexes.
const ChannelsPerBoard = 1 << ChannelWidth

// Clock of the pulse generator.
const (
	ClockFrequency = 409.6e6
	ClockPeriod    = 1 / ClockFrequency
)

// Mode is the programming-mode selector of a word.
type Mode uint8

const (
	ModeInvalid            Mode = 0b000
	ModeProgramGateTable   Mode = 0b001
	ModeProgramSequenceMap Mode = 0b010
	ModeProgramPulseTable  Mode = 0b011
	ModeRun                Mode = 0b100
	ModeBypass             Mode = 0b111
)

// IsRun reports whether m selects gate-sequence execution. The two
// neighbouring encodings are accepted as run variants by the hardware.
func (m Mode) IsRun() bool {
	return m == ModeRun || m == 0b101 || m == 0b110
}

func (m Mode) String() string {
	switch {
	case m == ModeBypass:
		return "bypass"
	case m == ModeProgramGateTable:
		return "prog_glut"
	case m == ModeProgramSequenceMap:
		return "prog_slut"
	case m == ModeProgramPulseTable:
		return "prog_plut"
	case m.IsRun():
		return "run"
	default:
		return fmt.Sprintf("mode(%03b)", uint8(m))
	}
}

// ModType is the modulation type a pulse word drives.
type ModType uint8

const (
	Freq0 ModType = iota
	Amp0
	Phase0
	Freq1
	Amp1
	Phase1
	FrameRot0
	FrameRot1
)

// NumModTypes is the number of distinct modulation types.
const NumModTypes = 8

var modTypeNames = [NumModTypes]string{"f0", "a0", "p0", "f1", "a1", "p1", "z0", "z1"}

func (m ModType) String() string {
	if int(m) < len(modTypeNames) {
		return modTypeNames[m]
	}
	return fmt.Sprintf("mod(%d)", uint8(m))
}

// IsFrequency, IsAmplitude and IsPhase classify m by physical unit. Frame
// rotations are phases.
func (m ModType) IsFrequency() bool { return m == Freq0 || m == Freq1 }
func (m ModType) IsAmplitude() bool { return m == Amp0 || m == Amp1 }
func (m ModType) IsPhase() bool     { return !m.IsFrequency() && !m.IsAmplitude() }

// ParseModType maps a short name such as "a0" or "z1" to its ModType.
func ParseModType(name string) (ModType, error) {
	for i, n := range modTypeNames {
		if n == name {
			return ModType(i), nil
		}
	}
	return 0, errors.Errorf("unknown modulation type %q", name)
}
