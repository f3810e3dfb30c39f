package harness

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/haikusw/JaqalPaw/internal/emulator"
	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// Snapshot is the canonical summary of a scenario result: per-channel
// gate tables, per-board word counts and replayed record shapes. It holds
// no floats so it serializes through ir.MarshalCanonical.
func Snapshot(name string, r *Result) ([]byte, error) {
	out := map[string]any{"name": name}
	if r.CompileErr != nil {
		out["compile_error"] = string(r.CompileErr.Code)
		return ir.MarshalCanonical(out)
	}

	state := r.Program.State()
	channels := make([]any, 0, state.Channels())
	for ch := range state.Channels() {
		seq := state.Sequence(ch)
		ids := make([]any, len(seq))
		for i, id := range seq {
			ids[i] = int(id)
		}
		channels = append(channels, map[string]any{
			"channel":      ch,
			"unique_gates": state.UniqueGates(ch),
			"sequence":     ids,
		})
	}
	out["channels"] = channels

	boards := make([]any, len(r.Bytecode.Programming))
	for b := range boards {
		boards[b] = map[string]any{
			"programming": len(r.Bytecode.Programming[b]),
			"sequence":    len(r.Bytecode.Sequence[b]),
		}
	}
	out["boards"] = boards
	out["stream"] = wire.Count(r.Stream)

	keys := slices.SortedFunc(maps.Keys(r.Records), func(a, b emulator.Key) int {
		return cmp.Or(cmp.Compare(a.Channel, b.Channel), cmp.Compare(a.ModType, b.ModType))
	})
	records := make([]any, len(keys))
	for i, k := range keys {
		rec := r.Records[k]
		records[i] = map[string]any{
			"channel":  k.Channel,
			"mod":      k.ModType.String(),
			"segments": len(rec.Segments),
			"cycles":   recordCycles(rec),
		}
	}
	out["records"] = records
	return ir.MarshalCanonical(out)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
