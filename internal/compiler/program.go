package compiler

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/lut"
	"github.com/haikusw/JaqalPaw/internal/timing"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// ChannelMask selects channels; bit n selects channel n.
type ChannelMask uint64

// AllChannels selects channels 0..n-1.
func AllChannels(n int) ChannelMask {
	if n >= MaxChannels {
		return ^ChannelMask(0)
	}
	return ChannelMask(1)<<n - 1
}

// Has reports whether ch is selected.
func (m ChannelMask) Has(ch int) bool {
	return ch >= 0 && ch < MaxChannels && m&(1<<ch) != 0
}

// Count is the number of selected channels.
func (m ChannelMask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Bytecode holds the two output blocks of a program, one inner list per
// board of up to eight channels. The programming block loads the lookup
// tables; the sequence block runs the circuit and may be sent repeatedly.
type Bytecode struct {
	Programming [][]wire.Word
	Sequence    [][]wire.Word
}

// Words counts the words of both blocks.
func (b *Bytecode) Words() int {
	return wire.Count(b.Programming) + wire.Count(b.Sequence)
}

// Hash is the content identity of b: equal words on every board give equal
// hashes.
func (b *Bytecode) Hash() string {
	var data []byte
	for _, board := range b.Flatten() {
		data = append(data, wire.Concat(board)...)
	}
	return ir.HashWithDomain(ir.DomainProgram, data)
}

// Flatten concatenates, per board, the programming block and the sequence
// block.
func (b *Bytecode) Flatten() [][]wire.Word {
	out := make([][]wire.Word, max(len(b.Programming), len(b.Sequence)))
	for i := range out {
		if i < len(b.Programming) {
			out[i] = append(out[i], b.Programming[i]...)
		}
		if i < len(b.Sequence) {
			out[i] = append(out[i], b.Sequence[i]...)
		}
	}
	return out
}

// lastPacketCycles is the length of each segment of the closing packet.
var lastPacketCycles = timing.ClockCycles(3e-7)

// Program is a compiled circuit. It is immutable.
type Program struct {
	compiler *Compiler
	nodes    []ir.Node
	state    *State
	tables   *lut.Store
}

// Channels is the channel count of the program.
func (p *Program) Channels() int {
	return p.compiler.opts.Channels
}

// Boards is the number of boards the channels span.
func (p *Program) Boards() int {
	return (p.Channels() + wire.ChannelsPerBoard - 1) / wire.ChannelsPerBoard
}

// State returns the dedup state of the compilation.
func (p *Program) State() *State {
	return p.state
}

// Tables returns the assembled lookup tables, keyed by global channel.
func (p *Program) Tables() *lut.Store {
	return p.tables
}

// Nodes returns the circuit tree the program was compiled from, without
// delays applied.
func (p *Program) Nodes() []ir.Node {
	return p.nodes
}

func (p *Program) boardChannels(board int, mask ChannelMask) []int {
	var chans []int
	lo := board * wire.ChannelsPerBoard
	for ch := lo; ch < min(lo+wire.ChannelsPerBoard, p.Channels()); ch++ {
		if mask.Has(ch) {
			chans = append(chans, ch)
		}
	}
	return chans
}

// runWords packs each channel's id sequence into run words and interleaves
// them round-robin. A channel that runs out of words is skipped.
func runWords(chans []int, ids func(ch int) ([]uint16, error)) ([]wire.Word, error) {
	runs := make([][]wire.Word, len(chans))
	longest := 0
	for i, ch := range chans {
		seq, err := ids(ch)
		if err != nil {
			return nil, err
		}
		words, err := wire.PackRun(uint8(ch%wire.ChannelsPerBoard), seq)
		if err != nil {
			return nil, errors.Wrapf(err, "run words of channel %d", ch)
		}
		runs[i] = words
		longest = max(longest, len(words))
	}
	var out []wire.Word
	for j := range longest {
		for _, r := range runs {
			if j < len(r) {
				out = append(out, r[j])
			}
		}
	}
	return out, nil
}

// Bytecode returns the programming and sequence blocks of the channels
// selected by mask. Per board, the programming block holds every selected
// channel's gate table, sequence map and pulse table in channel order.
func (p *Program) Bytecode(mask ChannelMask) (*Bytecode, error) {
	out := &Bytecode{
		Programming: make([][]wire.Word, p.Boards()),
		Sequence:    make([][]wire.Word, p.Boards()),
	}
	for b := range p.Boards() {
		chans := p.boardChannels(b, mask)
		prog := []wire.Word{}
		for _, ch := range chans {
			words, err := p.tables.ProgrammingWords(ch)
			if err != nil {
				return nil, err
			}
			prog = append(prog, words...)
		}
		seq, err := runWords(chans, func(ch int) ([]uint16, error) {
			return p.state.Sequence(ch), nil
		})
		if err != nil {
			return nil, err
		}
		out.Programming[b] = prog
		out.Sequence[b] = seq
		p.compiler.opts.Metrics.AddWords("programming", len(prog))
		p.compiler.opts.Metrics.AddWords("sequence", len(seq))
	}
	return out, nil
}

// InitializationGates returns, per channel, the gate id of the
// initialization gate. The gate is built the way circuit gates are, padding
// and delays included, so its hash matches the compiled one. Channels on
// which the gate emits nothing are absent.
func (p *Program) InitializationGates() (map[int]uint16, error) {
	name := p.compiler.opts.InitializeGate
	g, err := p.compiler.construct.Slice(name, nil)
	if err != nil {
		return nil, err
	}
	if d := p.compiler.opts.Delays; d != nil {
		g = g.WithDelays(d.Delay)
	}

	out := make(map[int]uint16)
	for ch := range min(g.Channels(), p.Channels()) {
		segs := g.Segments(ch)
		if len(segs) == 0 {
			continue
		}
		h, err := ir.GateHash(segs)
		if err != nil {
			return nil, err
		}
		id, ok := p.state.GateID(ch, h)
		if !ok {
			return nil, &ir.CompileError{
				Code:    ir.ErrCodeMissingInitGate,
				Gate:    name,
				Channel: ch,
				Message: "initialization gate does not occur in the circuit",
			}
		}
		out[ch] = id
	}
	return out, nil
}

// tailFrom returns seq from the n-th (0-based) occurrence of id.
func tailFrom(seq []uint16, id uint16, n int) ([]uint16, bool) {
	for i, v := range seq {
		if v != id {
			continue
		}
		if n == 0 {
			return seq[i:], true
		}
		n--
	}
	return nil, false
}

// PartialSequence returns the sequence block of the channels selected by
// mask, starting on every channel at the index-th occurrence of the
// initialization gate. Programming blocks are empty: the tables are those
// already loaded by Bytecode.
func (p *Program) PartialSequence(mask ChannelMask, index int) (*Bytecode, error) {
	name := p.compiler.opts.InitializeGate
	if index < 0 {
		return nil, ir.NewCompileError(ir.ErrCodeBadArguments, name, "negative start index %d", index)
	}
	init, err := p.InitializationGates()
	if err != nil {
		return nil, err
	}

	out := &Bytecode{
		Programming: make([][]wire.Word, p.Boards()),
		Sequence:    make([][]wire.Word, p.Boards()),
	}
	for b := range p.Boards() {
		seq, err := runWords(p.boardChannels(b, mask), func(ch int) ([]uint16, error) {
			ids := p.state.Sequence(ch)
			if len(ids) == 0 {
				return nil, nil
			}
			gid, ok := init[ch]
			if !ok {
				return nil, &ir.CompileError{
					Code:    ir.ErrCodeMissingInitGate,
					Gate:    name,
					Channel: ch,
					Message: "initialization gate emits nothing on this channel",
				}
			}
			tail, ok := tailFrom(ids, gid, index)
			if !ok {
				return nil, &ir.CompileError{
					Code:    ir.ErrCodeMissingInitGate,
					Gate:    name,
					Channel: ch,
					Message: fmt.Sprintf("initialization gate runs fewer than %d times", index+1),
				}
			}
			return tail, nil
		})
		if err != nil {
			return nil, err
		}
		out.Programming[b] = []wire.Word{}
		out.Sequence[b] = seq
		p.compiler.opts.Metrics.AddWords("sequence", len(seq))
	}
	return out, nil
}

// LastPacket returns the closing bypass packet of every board: on each
// selected channel, an untriggered no-op followed by a triggered one, in
// time order.
func (p *Program) LastPacket(mask ChannelMask) (*Bytecode, error) {
	out := &Bytecode{
		Programming: make([][]wire.Word, p.Boards()),
		Sequence:    make([][]wire.Word, p.Boards()),
	}
	for b := range p.Boards() {
		var words []wire.Word
		for _, ch := range p.boardChannels(b, mask) {
			for _, trig := range []bool{false, true} {
				seg := ir.Nop(ch, lastPacketCycles)
				seg.WaitTrigger = trig
				w, err := seg.Words(true)
				if err != nil {
					return nil, err
				}
				words = append(words, w...)
			}
		}
		sorted, err := timing.TimeSort(words)
		if err != nil {
			return nil, err
		}
		out.Programming[b] = []wire.Word{}
		out.Sequence[b] = sorted
	}
	return out, nil
}

// Stream returns the bypass word stream of the selected channels (nil for
// all), one time-ordered list per board, loops unrolled and delays applied.
func (p *Program) Stream(selected []int) ([][]wire.Word, error) {
	boards, err := timing.Stream(p.nodes, p.Channels(), p.compiler.opts.Delays, selected)
	if err != nil {
		return nil, err
	}
	p.compiler.opts.Metrics.AddWords("stream", wire.Count(boards))
	return boards, nil
}

// Hash is the content identity of the full bytecode of p.
func (p *Program) Hash() (string, error) {
	bc, err := p.Bytecode(AllChannels(p.Channels()))
	if err != nil {
		return "", err
	}
	return bc.Hash(), nil
}
