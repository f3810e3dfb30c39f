package circuit

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/ir"
)

// GateSource resolves a gate call to its segments. *provider.Registry
// implements it.
type GateSource interface {
	Gate(name string, args []float64) ([]ir.PulseSegment, error)
}

// Gates that take the channel count instead of explicit arguments.
var channelCountGates = map[string]bool{
	"prepare_all": true,
	"measure_all": true,
}

// Constructor walks resolved circuits into ir trees.
type Constructor struct {
	channels int
	gates    GateSource
	logger   *zap.Logger
}

// NewConstructor returns a constructor for a system of the given channel
// count. logger may be nil.
func NewConstructor(channels int, gates GateSource, logger *zap.Logger) *Constructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Constructor{channels: channels, gates: gates, logger: logger}
}

// Channels is the channel count slices are built for.
func (c *Constructor) Channels() int {
	return c.channels
}

// Build turns a circuit into an ir tree. Top-level and sequential gates
// become padded GateNodes, parallel blocks a single merged and padded
// GateNode, sequential blocks BlockNodes and loops LoopNodes; loops are not
// unrolled.
func (c *Constructor) Build(circ *Circuit) ([]ir.Node, error) {
	if circ.Channels > c.channels {
		return nil, ir.NewCompileError(ir.ErrCodeInvalidCircuit, "",
			"circuit declares %d channels, system has %d", circ.Channels, c.channels)
	}
	return c.sequence(circ.Body)
}

// Slice builds the padded slice of a single gate call.
func (c *Constructor) Slice(name string, args []float64) (*ir.GateSlice, error) {
	g, err := c.gate(Op{Gate: name, Args: args})
	if err != nil {
		return nil, err
	}
	return g.MakeDurationsEqual(), nil
}

func (c *Constructor) sequence(ops []Op) ([]ir.Node, error) {
	nodes := make([]ir.Node, 0, len(ops))
	for _, op := range ops {
		n, err := c.node(op)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *Constructor) node(op Op) (ir.Node, error) {
	switch {
	case op.IsGate():
		g, err := c.gate(op)
		if err != nil {
			return nil, err
		}
		return ir.GateNode{Slice: g.MakeDurationsEqual()}, nil
	case op.IsLoop():
		body, err := c.sequence(op.Block)
		if err != nil {
			return nil, err
		}
		return ir.LoopNode{Body: body, Repeats: op.Repeats}, nil
	case op.Parallel:
		g, err := c.parallel(op.Block)
		if err != nil {
			return nil, err
		}
		return ir.BlockNode{Children: []ir.Node{ir.GateNode{Slice: g.MakeDurationsEqual()}}, Parallel: true}, nil
	}
	children, err := c.sequence(op.Block)
	if err != nil {
		return nil, err
	}
	return ir.BlockNode{Children: children}, nil
}

// parallel merges the children of a parallel block.
func (c *Constructor) parallel(ops []Op) (*ir.GateSlice, error) {
	merged := ir.NewGateSlice(c.channels)
	for _, op := range ops {
		g, err := c.flatten(op)
		if err != nil {
			return nil, err
		}
		merged = merged.Merge(g)
	}
	return merged, nil
}

// serial lays the children of a sequential block nested in a parallel
// block back to back. Each step is padded only on the channels the block
// uses, so sibling channels stay free.
func (c *Constructor) serial(ops []Op) (*ir.GateSlice, error) {
	steps := make([]*ir.GateSlice, 0, len(ops))
	used := make(map[int]bool)
	for _, op := range ops {
		g, err := c.flatten(op)
		if err != nil {
			return nil, err
		}
		for ch := range g.Channels() {
			if len(g.Segments(ch)) > 0 {
				used[ch] = true
			}
		}
		steps = append(steps, g)
	}
	out := ir.NewGateSlice(c.channels)
	for _, g := range steps {
		out = out.Merge(g.PadChannels(used))
	}
	return out, nil
}

// flatten reduces an op nested in a parallel block to one slice.
func (c *Constructor) flatten(op Op) (*ir.GateSlice, error) {
	switch {
	case op.IsGate():
		return c.gate(op)
	case op.IsLoop():
		return nil, ir.NewCompileError(ir.ErrCodeInvalidCircuit, "", "loops cannot run in parallel")
	case op.Parallel:
		return c.parallel(op.Block)
	}
	return c.serial(op.Block)
}

// gate resolves one gate call into an unpadded slice, dropping negligible
// segments.
func (c *Constructor) gate(op Op) (*ir.GateSlice, error) {
	args := op.Args
	if channelCountGates[op.Gate] {
		if len(args) > 0 {
			return nil, ir.NewCompileError(ir.ErrCodeBadArguments, op.Gate, "gate cannot have parameters")
		}
		args = []float64{float64(c.channels)}
	}

	segs, err := c.gates.Gate(op.Gate, args)
	if err != nil {
		return nil, err
	}

	g := ir.NewGateSlice(c.channels)
	kept := 0
	for _, s := range segs {
		if s.Negligible() {
			continue
		}
		if err := g.Add(s); err != nil {
			return nil, &ir.CompileError{
				Code:    ir.ErrCodeBadArguments,
				Gate:    op.Gate,
				Channel: s.Channel,
				Message: errors.Cause(err).Error(),
			}
		}
		kept++
	}
	c.logger.Debug("gate resolved",
		zap.String("gate", op.Gate),
		zap.Float64s("args", args),
		zap.Int("segments", kept),
		zap.Int("dropped", len(segs)-kept),
	)
	return g, nil
}
