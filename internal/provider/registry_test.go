package provider

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

func noop([]float64) ([]ir.PulseSegment, error) { return nil, nil }

func TestNewRequiresDefaultGates(t *testing.T) {
	_, err := New(map[string]Handler{PrepareAll: noop})
	require.Error(t, err)
	assert.True(t, ir.IsCompileError(err, ir.ErrCodeUnknownGate))
	assert.Contains(t, err.Error(), MeasureAll)

	_, err = New(map[string]Handler{PrepareAll: noop, MeasureAll: nil})
	assert.Error(t, err)

	r, err := New(map[string]Handler{PrepareAll: noop, MeasureAll: noop, "Sx": noop})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sx", MeasureAll, PrepareAll}, r.Names())
	assert.True(t, r.Has("Sx"))
}

func TestNewCustomRequired(t *testing.T) {
	_, err := New(map[string]Handler{"init": noop}, "init")
	assert.NoError(t, err)
}

func TestGateErrors(t *testing.T) {
	r, err := New(map[string]Handler{
		PrepareAll: noop,
		MeasureAll: noop,
		"bad": func([]float64) ([]ir.PulseSegment, error) {
			return nil, errors.New("wrong arity")
		},
	})
	require.NoError(t, err)

	_, err = r.Gate("missing", nil)
	assert.True(t, ir.IsCompileError(err, ir.ErrCodeUnknownGate))

	_, err = r.Gate("bad", nil)
	assert.True(t, ir.IsCompileError(err, ir.ErrCodeBadArguments))
	assert.Contains(t, err.Error(), "gate=bad")
}

func loadTestPulses(t *testing.T) *Registry {
	t.Helper()
	src, err := os.ReadFile("testdata/pulses.cue")
	require.NoError(t, err)
	r, err := LoadCUE(src, "pulses.cue")
	require.NoError(t, err)
	return r
}

func TestLoadCUESingleGate(t *testing.T) {
	r := loadTestPulses(t)

	segs, err := r.Gate("Sx", []float64{2})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, ir.PulseSegment{
		Channel:    2,
		ModType:    wire.Amp0,
		Duration:   200,
		U:          [4]int64{1000},
		EnableMask: ir.DefaultEnableMask,
	}, segs[0])
}

func TestLoadCUEComputedTerms(t *testing.T) {
	r := loadTestPulses(t)

	segs, err := r.Gate("Rz", []float64{1, 1.5})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(1500), segs[0].U[0])
	assert.Equal(t, uint8(1), segs[0].EnableMask)
	assert.Equal(t, wire.FrameRot0, segs[0].ModType)
}

func TestLoadCUEChannelCountGates(t *testing.T) {
	r := loadTestPulses(t)

	segs, err := r.Gate(PrepareAll, []float64{3})
	require.NoError(t, err)
	require.Len(t, segs, 3)
	for i, s := range segs {
		assert.Equal(t, i, s.Channel)
		assert.True(t, s.WaitTrigger)
	}
}

func TestLoadCUENoSegments(t *testing.T) {
	r := loadTestPulses(t)

	segs, err := r.Gate("I", []float64{0})
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestLoadCUEArgumentCount(t *testing.T) {
	r := loadTestPulses(t)

	_, err := r.Gate("Sx", []float64{1, 2})
	assert.True(t, ir.IsCompileError(err, ir.ErrCodeBadArguments))
}

func TestLoadCUEErrors(t *testing.T) {
	_, err := LoadCUE([]byte(`gates: {`), "broken.cue")
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "broken.cue")

	_, err = LoadCUE([]byte(`other: 1`), "empty.cue")
	assert.ErrorAs(t, err, &de)

	_, err = LoadCUE([]byte(`gates: Sx: {params: ["q"], segments: []}`), "partial.cue")
	assert.True(t, ir.IsCompileError(err, ir.ErrCodeUnknownGate), "required gates missing")
}

func TestLoadCUEBadModulation(t *testing.T) {
	src := `gates: {
	prepare_all: {params: ["n"]}
	measure_all: {params: ["n"]}
	X: {segments: [{channel: 0, mod: "q9", duration: 10}]}
}`
	r, err := LoadCUE([]byte(src), "bad.cue")
	require.NoError(t, err)

	_, err = r.Gate("X", nil)
	assert.True(t, ir.IsCompileError(err, ir.ErrCodeBadArguments))
}
