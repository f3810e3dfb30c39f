package compiler

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/circuit"
	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/metrics"
	"github.com/haikusw/JaqalPaw/internal/provider"
	"github.com/haikusw/JaqalPaw/internal/timing"
)

// MaxChannels bounds Options.Channels so a channel mask fits a uint64.
const MaxChannels = 64

// Options configures a Compiler.
type Options struct {
	Channels int
	Provider circuit.GateSource

	// Delays, when set, are applied to every triggered segment before
	// deduplication.
	Delays *timing.DelayMap

	// InitializeGate names the gate PartialSequence restarts from.
	// Defaults to prepare_all.
	InitializeGate string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Compiler turns circuit trees into Programs. A Compiler holds no state
// between compilations and is safe for concurrent use when its provider is.
type Compiler struct {
	opts      Options
	construct *circuit.Constructor
	logger    *zap.Logger
}

// New validates opts and returns a compiler.
func New(opts Options) (*Compiler, error) {
	if opts.Channels < 1 || opts.Channels > MaxChannels {
		return nil, errors.Errorf("channel count %d out of range 1..%d", opts.Channels, MaxChannels)
	}
	if opts.Provider == nil {
		return nil, errors.New("compiler needs a gate provider")
	}
	if opts.InitializeGate == "" {
		opts.InitializeGate = provider.PrepareAll
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Compiler{
		opts:      opts,
		construct: circuit.NewConstructor(opts.Channels, opts.Provider, opts.Logger),
		logger:    opts.Logger,
	}, nil
}

// Channels is the channel count programs are compiled for.
func (c *Compiler) Channels() int {
	return c.opts.Channels
}

// Constructor returns the constructor used for gate lookups.
func (c *Compiler) Constructor() *circuit.Constructor {
	return c.construct
}

// CompileCircuit builds the tree of a resolved circuit and compiles it.
func (c *Compiler) CompileCircuit(circ *circuit.Circuit) (*Program, error) {
	nodes, err := c.construct.Build(circ)
	if err != nil {
		c.opts.Metrics.ObserveCompile(time.Now(), err)
		return nil, err
	}
	return c.Compile(nodes)
}

// Compile deduplicates the gates of nodes and assembles their tables. A
// failed compile yields no Program.
func (c *Compiler) Compile(nodes []ir.Node) (*Program, error) {
	start := time.Now()
	p, err := c.compile(nodes)
	c.opts.Metrics.ObserveCompile(start, err)
	if err != nil {
		c.logger.Debug("compile failed", zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (c *Compiler) compile(nodes []ir.Node) (*Program, error) {
	delayed := nodes
	if c.opts.Delays != nil {
		delayed = ir.ApplyDelays(nodes, c.opts.Delays.Delay)
	}

	state := newState(c.opts.Channels)
	if err := state.build(delayed); err != nil {
		return nil, err
	}
	tables, err := state.tables()
	if err != nil {
		return nil, err
	}

	unique := 0
	for ch := range c.opts.Channels {
		n := state.UniqueGates(ch)
		c.opts.Metrics.SetUniqueGates(ch, n)
		unique += n
	}
	c.logger.Info("circuit compiled",
		zap.Int("channels", c.opts.Channels),
		zap.Int("unique_gates", unique),
	)

	return &Program{
		compiler: c,
		nodes:    nodes,
		state:    state,
		tables:   tables,
	}, nil
}
