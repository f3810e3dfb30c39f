package harness

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/emulator"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// evaluateAssertion checks a single assertion against the result.
func evaluateAssertion(r *Result, a Assertion) error {
	if a.Type == AssertCompileError {
		return assertCompileError(r, a)
	}
	if r.CompileErr != nil {
		return errors.Errorf("compile failed: %v", r.CompileErr)
	}

	switch a.Type {
	case AssertUniqueGates:
		return assertUniqueGates(r, a)
	case AssertSequence:
		return assertSequence(r, a)
	case AssertWordCount:
		return assertWordCount(r, a)
	case AssertRecord:
		return assertRecord(r, a)
	default:
		return errors.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCompileError(r *Result, a Assertion) error {
	if r.CompileErr == nil {
		return errors.Errorf("expected compile error %s, compilation succeeded", a.Code)
	}
	if string(r.CompileErr.Code) != a.Code {
		return errors.Errorf("expected compile error %s, got %s", a.Code, r.CompileErr.Code)
	}
	return nil
}

func checkChannel(r *Result, ch int) error {
	if ch < 0 || ch >= r.Program.Channels() {
		return errors.Errorf("channel %d out of range (program has %d)", ch, r.Program.Channels())
	}
	return nil
}

func assertUniqueGates(r *Result, a Assertion) error {
	if err := checkChannel(r, a.Channel); err != nil {
		return err
	}
	got := r.Program.State().UniqueGates(a.Channel)
	if got != a.Count {
		return errors.Errorf("channel %d: expected %d unique gates, got %d", a.Channel, a.Count, got)
	}
	return nil
}

func assertSequence(r *Result, a Assertion) error {
	if err := checkChannel(r, a.Channel); err != nil {
		return err
	}
	got := r.Program.State().Sequence(a.Channel)
	want := make([]uint16, len(a.IDs))
	for i, id := range a.IDs {
		want[i] = uint16(id)
	}
	if !slices.Equal(got, want) {
		return errors.Errorf("channel %d: expected sequence %v, got %v", a.Channel, want, got)
	}
	return nil
}

func assertWordCount(r *Result, a Assertion) error {
	var got int
	switch a.Block {
	case BlockStream:
		got = wire.Count(r.Stream)
	case BlockProgramming, BlockSequence:
		blocks := r.Bytecode.Programming
		if a.Block == BlockSequence {
			blocks = r.Bytecode.Sequence
		}
		if a.Board < 0 || a.Board >= len(blocks) {
			return errors.Errorf("board %d out of range (program has %d)", a.Board, len(blocks))
		}
		got = len(blocks[a.Board])
	}
	if got != a.Count {
		return errors.Errorf("%s board %d: expected %d words, got %d", a.Block, a.Board, a.Count, got)
	}
	return nil
}

func assertRecord(r *Result, a Assertion) error {
	mod, err := wire.ParseModType(a.Mod)
	if err != nil {
		return err
	}
	rec, ok := r.Records[emulator.Key{Channel: a.Channel, ModType: mod}]
	if !ok {
		return errors.Errorf("no record for channel %d %s", a.Channel, a.Mod)
	}
	if len(rec.Segments) != a.Segments {
		return errors.Errorf("channel %d %s: expected %d segments, got %d", a.Channel, a.Mod, a.Segments, len(rec.Segments))
	}
	if got := recordCycles(rec); got != a.Cycles {
		return errors.Errorf("channel %d %s: expected %d cycles, got %d", a.Channel, a.Mod, a.Cycles, got)
	}
	return nil
}

func recordCycles(rec *emulator.Record) int64 {
	var n int64
	for _, s := range rec.Segments {
		n += s.Cycles
	}
	return n
}
