package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/artifact"
	"github.com/haikusw/JaqalPaw/internal/circuit"
	"github.com/haikusw/JaqalPaw/internal/compiler"
	"github.com/haikusw/JaqalPaw/internal/config"
	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/metrics"
	"github.com/haikusw/JaqalPaw/internal/provider"
	"github.com/haikusw/JaqalPaw/internal/store"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// CompileFlags are the flags shared by every command that compiles circuits.
type CompileFlags struct {
	Pulses     string
	Channels   int
	Mask       uint64
	Set        []string // name=value let overrides
	Strict     bool     // require usepulses in the circuit
	From       int      // restart at the n-th initialization gate; -1 compiles everything
	LastPacket bool
}

func (f *CompileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Pulses, "pulses", "", "CUE gate definitions (default: config, then the circuit's usepulses)")
	cmd.Flags().IntVar(&f.Channels, "channels", 0, "channel count (default: config)")
	cmd.Flags().Uint64Var(&f.Mask, "mask", 0, "channel mask (default: config, then all channels)")
	cmd.Flags().StringArrayVar(&f.Set, "set", nil, "override a let constant (name=value, repeatable)")
	cmd.Flags().BoolVar(&f.Strict, "strict", false, "require usepulses in the circuit")
	cmd.Flags().IntVar(&f.From, "from", -1, "emit only the sequence from the n-th initialization gate")
	cmd.Flags().BoolVar(&f.LastPacket, "last-packet", false, "append the closing packet to every sequence block")
}

// apply merges the flags that were set on cmd into cfg.
func (f *CompileFlags) apply(cmd *cobra.Command, cfg *config.Config) (map[string]float64, error) {
	if cmd.Flags().Changed("channels") {
		cfg.Channels = f.Channels
	}
	if cmd.Flags().Changed("mask") {
		mask := f.Mask
		cfg.ChannelMask = &mask
	}
	if f.Pulses != "" {
		cfg.Pulses = f.Pulses
		cfg.Path = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid settings", err)
	}

	overrides := make(map[string]float64, len(cfg.Overrides)+len(f.Set))
	for k, v := range cfg.Overrides {
		overrides[k] = v
	}
	for _, kv := range f.Set {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("--set %q: expected name=value", kv))
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("--set %q", kv), err)
		}
		overrides[name] = v
	}
	return overrides, nil
}

// compiled is one circuit turned into bytecode.
type compiled struct {
	Path     string
	Source   string
	Program  *compiler.Program
	Bytecode *compiler.Bytecode
	Stream   [][]wire.Word // one list per board
	Hash     string
}

// Artifact packages c for the hardware.
func (c *compiled) Artifact() *artifact.Artifact {
	return &artifact.Artifact{
		Hash:        c.Hash,
		Channels:    c.Program.Channels(),
		Label:       filepath.Base(c.Path),
		Programming: c.Bytecode.Programming,
		Sequence:    c.Bytecode.Sequence,
		Stream:      c.Stream,
	}
}

// Compilation is the archive record of c.
func (c *compiled) Compilation() *store.Compilation {
	return &store.Compilation{
		Hash:        c.Hash,
		Channels:    c.Program.Channels(),
		Label:       filepath.Base(c.Path),
		Source:      c.Source,
		Programming: c.Bytecode.Programming,
		Sequence:    c.Bytecode.Sequence,
	}
}

// pipeline compiles circuit files with one configuration. It is safe for
// concurrent use: the parse cache and the registry cache are shared.
type pipeline struct {
	cfg       *config.Config
	flags     *CompileFlags
	overrides map[string]float64
	parser    *circuit.Parser
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	registries map[string]*provider.Registry
}

func newPipeline(opts *RootOptions, flags *CompileFlags, cmd *cobra.Command) (*pipeline, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	overrides, err := flags.apply(cmd, cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger().Debug("configuration",
		zap.String("path", cfg.Path),
		zap.Int("channels", cfg.Channels),
		zap.String("pulses", cfg.PulsesPath()),
	)
	return &pipeline{
		cfg:        cfg,
		flags:      flags,
		overrides:  overrides,
		parser:     circuit.NewParser(opts.metrics),
		logger:     opts.Logger(),
		metrics:    opts.metrics,
		registries: make(map[string]*provider.Registry),
	}, nil
}

// registry loads and caches the gate definitions at path.
func (p *pipeline) registry(path string) (*provider.Registry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.registries[path]; ok {
		return r, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read pulses", err)
	}
	r, err := provider.LoadCUE(src, path)
	if err != nil {
		return nil, err
	}
	p.registries[path] = r
	return r, nil
}

// pulsesPath picks the gate definitions of a circuit: the flag or config
// first, then the circuit's own usepulses.
func (p *pipeline) pulsesPath(circuitPath string, ast *circuit.AST) (string, error) {
	if path := p.cfg.PulsesPath(); path != "" {
		return path, nil
	}
	if ast.UsePulses == "" {
		return "", NewExitError(ExitCommandError, circuitPath+": no pulse definitions (use --pulses, the config file or usepulses)")
	}
	if filepath.IsAbs(ast.UsePulses) {
		return ast.UsePulses, nil
	}
	return filepath.Join(filepath.Dir(circuitPath), ast.UsePulses), nil
}

// selected lists the masked channels in order.
func (p *pipeline) selected() []int {
	mask := p.cfg.Mask()
	var out []int
	for ch := range p.cfg.Channels {
		if mask.Has(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// compile runs one circuit file through parsing, compilation and
// bytecode generation.
func (p *pipeline) compile(path string) (*compiled, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read circuit", err)
	}
	ast, err := p.parser.Parse(string(text), p.flags.Strict)
	if err != nil {
		return nil, err
	}
	circ, err := ast.Resolve(p.overrides)
	if err != nil {
		return nil, err
	}
	pulses, err := p.pulsesPath(path, ast)
	if err != nil {
		return nil, err
	}
	reg, err := p.registry(pulses)
	if err != nil {
		return nil, err
	}
	delays, err := p.cfg.DelayMap()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid delays", err)
	}

	c, err := compiler.New(compiler.Options{
		Channels:       p.cfg.Channels,
		Provider:       reg,
		Delays:         delays,
		InitializeGate: p.cfg.InitializeGate,
		Logger:         p.logger.With(zap.String("circuit", path)),
		Metrics:        p.metrics,
	})
	if err != nil {
		return nil, err
	}
	prog, err := c.CompileCircuit(circ)
	if err != nil {
		return nil, err
	}

	mask := p.cfg.Mask()
	var bc *compiler.Bytecode
	if p.flags.From >= 0 {
		bc, err = prog.PartialSequence(mask, p.flags.From)
	} else {
		bc, err = prog.Bytecode(mask)
	}
	if err != nil {
		return nil, err
	}
	if p.flags.LastPacket {
		last, err := prog.LastPacket(mask)
		if err != nil {
			return nil, err
		}
		for b := range bc.Sequence {
			bc.Sequence[b] = append(bc.Sequence[b], last.Sequence[b]...)
		}
	}

	stream, err := prog.Stream(p.selected())
	if err != nil {
		return nil, errors.Wrap(err, "stream")
	}
	return &compiled{
		Path:     path,
		Source:   string(text),
		Program:  prog,
		Bytecode: bc,
		Stream:   stream,
		Hash:     bc.Hash(),
	}, nil
}

// compileFailure converts err into output and an exit error. Compile errors
// keep their code; anything else is reported as a command error.
func compileFailure(f *OutputFormatter, path string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = f.Error("E_COMMAND", exitErr.Error())
		return exitErr
	}
	var ce *ir.CompileError
	if errors.As(err, &ce) {
		_ = f.Error(string(ce.Code), fmt.Sprintf("%s: %s", path, ce.Error()))
		return WrapExitError(ExitFailure, "compilation failed", err)
	}
	var de *provider.DefinitionError
	if errors.As(err, &de) {
		_ = f.Error("E_PULSES", de.Error())
		return WrapExitError(ExitCommandError, "invalid pulse definitions", err)
	}
	_ = f.Error("E_INTERNAL", fmt.Sprintf("%s: %v", path, err))
	return WrapExitError(ExitFailure, "compilation failed", err)
}
