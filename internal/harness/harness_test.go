package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

func TestGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failed assertions: %v", result.Errors)
		})
	}
}

func TestRunReplaysArchivedBytecode(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/bell_pair.yaml")
	require.NoError(t, err)

	result, err := RunWithLogger(context.Background(), scenario, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.Nil(t, result.CompileErr)
	assert.Len(t, result.Records, 4)
	assert.Equal(t, 1, result.Program.Boards())
}

func TestRunReportsFailedAssertions(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/bell_pair.yaml")
	require.NoError(t, err)
	scenario.Assertions = []Assertion{
		{Type: AssertUniqueGates, Channel: 0, Count: 7},
		{Type: AssertSequence, Channel: 1, IDs: []int{0}},
		{Type: AssertWordCount, Block: BlockSequence, Board: 3, Count: 1},
		{Type: AssertRecord, Channel: 1, Mod: "f0"},
		{Type: AssertCompileError, Code: "UNKNOWN_GATE"},
		{Type: AssertUniqueGates, Channel: 9},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "expected 7 unique gates, got 4")
	assert.Contains(t, result.Errors[2], "board 3 out of range")
	assert.Contains(t, result.Errors[3], "no record for channel 1 f0")
	assert.Contains(t, result.Errors[4], "compilation succeeded")
	assert.Contains(t, result.Errors[5], "out of range")
}

func TestCompileFailureFailsOtherAssertions(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/unknown_gate.yaml")
	require.NoError(t, err)
	scenario.Assertions = append(scenario.Assertions, Assertion{Type: AssertUniqueGates, Count: 1})

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	require.NotNil(t, result.CompileErr)
	assert.Equal(t, "Hadamard", result.CompileErr.Gate)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "compile failed")
}

func TestGlobalDelayAddsHoldWords(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/bell_pair.yaml")
	require.NoError(t, err)
	delay := 2e-8
	scenario.GlobalDelay = &delay

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	// a positive delay holds channel 0 only, before its triggered prepare_all
	assert.Equal(t, 14, wire.Count(result.Stream))
}

func TestLoadScenarioErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	write("c.yaml", "body: []\n")
	write("p.cue", "gates: {}\n")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown field",
			body:    "name: x\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing description",
			body:    "name: x\ncircuit: c.yaml\npulses: p.cue\nchannels: 1\n",
			wantErr: "description is required",
		},
		{
			name:    "zero channels",
			body:    "name: x\ndescription: d\ncircuit: c.yaml\npulses: p.cue\nassertions: [{type: compile_error, code: X}]\n",
			wantErr: "channels must be positive",
		},
		{
			name:    "missing circuit file",
			body:    "name: x\ndescription: d\ncircuit: nope.yaml\npulses: p.cue\nchannels: 1\nassertions: [{type: compile_error, code: X}]\n",
			wantErr: "circuit file not found",
		},
		{
			name:    "bad block",
			body:    "name: x\ndescription: d\ncircuit: c.yaml\npulses: p.cue\nchannels: 1\nassertions: [{type: word_count, block: data}]\n",
			wantErr: "block must be",
		},
		{
			name:    "unknown assertion",
			body:    "name: x\ndescription: d\ncircuit: c.yaml\npulses: p.cue\nchannels: 1\nassertions: [{type: timing}]\n",
			wantErr: `unknown assertion type "timing"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(write("s.yaml", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioResolvesRelativePaths(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/bell_pair.yaml")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "circuits", "bell.yaml"), scenario.Circuit)
	assert.Equal(t, filepath.Join("testdata", "pulses.cue"), scenario.Pulses)
}
