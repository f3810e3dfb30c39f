package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/circuit"
	"github.com/haikusw/JaqalPaw/internal/compiler"
	"github.com/haikusw/JaqalPaw/internal/emulator"
	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/provider"
	"github.com/haikusw/JaqalPaw/internal/store"
	"github.com/haikusw/JaqalPaw/internal/timing"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// scenarioID is the archive id every scenario replay is stored under.
const scenarioID = "scenario-0001"

// Result holds what a scenario run produced.
type Result struct {
	// Pass is true if all assertions passed.
	Pass bool

	// Errors lists failed assertion messages.
	Errors []string

	// CompileErr is set when compilation failed with a CompileError. The
	// remaining fields are then empty.
	CompileErr *ir.CompileError

	Program  *compiler.Program
	Bytecode *compiler.Bytecode
	Stream   [][]wire.Word // one list per board

	// Records are the waveforms replayed from the archived bytecode.
	Records map[emulator.Key]*emulator.Record
}

// Run executes a scenario with a no-op logger.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithLogger(ctx, scenario, zap.NewNop())
}

// RunWithLogger executes a scenario and evaluates its assertions.
// Execution flow:
//  1. Load pulses and parse the circuit
//  2. Compile; a CompileError is a result, not a failure
//  3. Build bytecode and the bypass stream
//  4. Archive the bytecode in an in-memory store and replay it
//  5. Evaluate assertions
//
// The returned error reports a broken scenario (unreadable files, store
// failures); failed assertions are reported in Result.
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *zap.Logger) (*Result, error) {
	result := &Result{}

	prog, err := compile(scenario, logger)
	var ce *ir.CompileError
	switch {
	case errors.As(err, &ce):
		result.CompileErr = ce
		logger.Info("scenario compile failed", zap.String("scenario", scenario.Name), zap.String("code", string(ce.Code)))
	case err != nil:
		return nil, err
	default:
		if err := result.build(ctx, prog, scenario); err != nil {
			return nil, err
		}
	}

	result.Pass = true
	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(result, a); err != nil {
			result.Pass = false
			result.Errors = append(result.Errors, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	logger.Debug("scenario done",
		zap.String("scenario", scenario.Name),
		zap.Bool("pass", result.Pass),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

func compile(scenario *Scenario, logger *zap.Logger) (*compiler.Program, error) {
	pulses, err := os.ReadFile(scenario.Pulses)
	if err != nil {
		return nil, errors.Wrap(err, "read pulses")
	}
	reg, err := provider.LoadCUE(pulses, filepath.Base(scenario.Pulses))
	if err != nil {
		return nil, err
	}

	text, err := os.ReadFile(scenario.Circuit)
	if err != nil {
		return nil, errors.Wrap(err, "read circuit")
	}
	ast, err := circuit.Parse(string(text), false)
	if err != nil {
		return nil, err
	}
	circ, err := ast.Resolve(scenario.Overrides)
	if err != nil {
		return nil, err
	}

	opts := compiler.Options{
		Channels: scenario.Channels,
		Provider: reg,
		Logger:   logger,
	}
	if scenario.GlobalDelay != nil {
		opts.Delays = timing.NewDelayMapSeconds(*scenario.GlobalDelay)
	}
	c, err := compiler.New(opts)
	if err != nil {
		return nil, err
	}
	return c.CompileCircuit(circ)
}

func (r *Result) build(ctx context.Context, prog *compiler.Program, scenario *Scenario) error {
	r.Program = prog

	bc, err := prog.Bytecode(compiler.AllChannels(prog.Channels()))
	if err != nil {
		return errors.Wrap(err, "bytecode")
	}
	r.Bytecode = bc

	if r.Stream, err = prog.Stream(nil); err != nil {
		return errors.Wrap(err, "stream")
	}

	hash, err := prog.Hash()
	if err != nil {
		return err
	}
	st, err := store.Open(":memory:", store.WithIDGenerator(store.NewFixedGenerator(scenarioID)))
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	id, err := st.Save(ctx, &store.Compilation{
		Hash:        hash,
		Channels:    prog.Channels(),
		Label:       scenario.Name,
		Programming: bc.Programming,
		Sequence:    bc.Sequence,
	})
	if err != nil {
		return err
	}
	r.Records, err = st.Replay(ctx, id)
	return err
}
