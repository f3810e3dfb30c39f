package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haikusw/JaqalPaw/internal/artifact"
	"github.com/haikusw/JaqalPaw/internal/store"
)

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string, data any) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal([]byte(out), &r), out)
	if data != nil && r.Data != nil {
		require.NoError(t, json.Unmarshal(r.Data, data))
	}
	return r
}

// channels writes a project file for an n-channel system.
func channels(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "octet.toml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("channels = %d\n", n)), 0o644))
	return path
}

func twoChannels(t *testing.T) string {
	t.Helper()
	return channels(t, 2)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "octet", cmd.Use)

	for _, name := range []string{"compile", "stream", "decode", "archive", "batch", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	colorFlag := cmd.PersistentFlags().Lookup("color")
	require.NotNil(t, colorFlag)
	assert.Equal(t, "auto", colorFlag.DefValue)
}

func TestInvalidGlobalFlags(t *testing.T) {
	_, err := execute(t, "--format", "xml", "compile", "testdata/bell.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	_, err = execute(t, "--color", "always", "compile", "testdata/bell.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color")
}

func TestCompileWritesArtifact(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bell.octet")

	stdout, err := execute(t, "--format", "json", "--config", twoChannels(t),
		"compile", "testdata/bell.yaml", "-o", out)
	require.NoError(t, err, stdout)

	var result CompileResult
	r := decodeResponse(t, stdout, &result)
	assert.Equal(t, "ok", r.Status)
	assert.Equal(t, 2, result.Channels)
	assert.Equal(t, []int{4, 4}, result.UniqueGates)
	assert.Equal(t, []BoardResult{{Programming: 13, Sequence: 2}}, result.Boards)
	assert.Equal(t, 13, result.Stream)

	a, err := artifact.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, result.Hash, a.Hash)
	assert.Equal(t, "bell.yaml", a.Label)
	require.Len(t, a.Stream, 1)
	assert.Len(t, a.Stream[0], 13)
}

func TestCompileOverridesChangeHash(t *testing.T) {
	cfg := twoChannels(t)

	var base, changed CompileResult
	stdout, err := execute(t, "--format", "json", "--config", cfg, "compile", "testdata/bell.yaml")
	require.NoError(t, err)
	decodeResponse(t, stdout, &base)

	stdout, err = execute(t, "--format", "json", "--config", cfg, "compile", "testdata/bell.yaml", "--set", "angle=0.75")
	require.NoError(t, err)
	decodeResponse(t, stdout, &changed)

	assert.NotEqual(t, base.Hash, changed.Hash)
}

func TestCompileErrors(t *testing.T) {
	cfg := twoChannels(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown gate",
			args:     []string{"compile", "testdata/unknown_gate.yaml"},
			wantCode: ExitFailure,
			wantErr:  "UNKNOWN_GATE",
		},
		{
			name:     "missing circuit",
			args:     []string{"compile", "testdata/missing.yaml"},
			wantCode: ExitCommandError,
			wantErr:  "E_COMMAND",
		},
		{
			name:     "bad override",
			args:     []string{"compile", "testdata/bell.yaml", "--set", "angle"},
			wantCode: ExitCommandError,
			wantErr:  "E_COMMAND",
		},
		{
			name:     "too many channels",
			args:     []string{"compile", "testdata/bell.yaml", "--channels", "65"},
			wantCode: ExitCommandError,
			wantErr:  "E_COMMAND",
		},
		{
			name:     "init gate never reached",
			args:     []string{"compile", "testdata/bell.yaml", "--from", "1"},
			wantCode: ExitFailure,
			wantErr:  "MISSING_INIT_GATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, err := execute(t, append([]string{"--format", "json", "--config", cfg}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))

			r := decodeResponse(t, stdout, nil)
			assert.Equal(t, "error", r.Status)
			require.NotNil(t, r.Error)
			assert.Contains(t, r.Error.Code, tt.wantErr)
		})
	}
}

func TestCompilePartialAndLastPacket(t *testing.T) {
	var full, tail CompileResult
	cfg := twoChannels(t)

	stdout, err := execute(t, "--format", "json", "--config", cfg, "compile", "testdata/bell.yaml")
	require.NoError(t, err)
	decodeResponse(t, stdout, &full)

	stdout, err = execute(t, "--format", "json", "--config", cfg, "compile", "testdata/bell.yaml", "--from", "0", "--last-packet")
	require.NoError(t, err)
	decodeResponse(t, stdout, &tail)

	require.Len(t, tail.Boards, 1)
	assert.Equal(t, 0, tail.Boards[0].Programming)
	// one run word per channel plus two closing words per channel
	assert.Equal(t, 2+4, tail.Boards[0].Sequence)
	assert.NotEqual(t, full.Hash, tail.Hash)
}

func TestCompileArchivesOnce(t *testing.T) {
	cfg := twoChannels(t)
	db := filepath.Join(t.TempDir(), "archive.db")

	var first, second CompileResult
	stdout, err := execute(t, "--format", "json", "--config", cfg, "compile", "testdata/bell.yaml", "--db", db)
	require.NoError(t, err)
	decodeResponse(t, stdout, &first)
	stdout, err = execute(t, "--format", "json", "--config", cfg, "compile", "testdata/bell.yaml", "--db", db)
	require.NoError(t, err)
	decodeResponse(t, stdout, &second)

	assert.NotEmpty(t, first.ArchiveID)
	assert.Equal(t, first.ArchiveID, second.ArchiveID)

	var list []store.Summary
	stdout, err = execute(t, "--format", "json", "archive", "list", "--db", db)
	require.NoError(t, err)
	decodeResponse(t, stdout, &list)
	require.Len(t, list, 1)
	assert.Equal(t, first.Hash, list[0].Hash)
	assert.Equal(t, 15, list[0].Words)
}

func TestArchiveReplayAndDelete(t *testing.T) {
	db := filepath.Join(t.TempDir(), "archive.db")
	var compiled CompileResult
	stdout, err := execute(t, "--format", "json", "--config", twoChannels(t), "compile", "testdata/bell.yaml", "--db", db)
	require.NoError(t, err)
	decodeResponse(t, stdout, &compiled)

	var records []RecordSummary
	stdout, err = execute(t, "--format", "json", "archive", "replay", compiled.ArchiveID, "--db", db)
	require.NoError(t, err)
	decodeResponse(t, stdout, &records)
	require.Len(t, records, 4)
	assert.Equal(t, RecordSummary{Channel: 1, Mod: "a0", Segments: 4, Cycles: 1000}, withoutFloats(records[2]))

	_, err = execute(t, "archive", "delete", compiled.ArchiveID, "--db", db)
	require.NoError(t, err)

	_, err = execute(t, "archive", "replay", compiled.ArchiveID, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func withoutFloats(r RecordSummary) RecordSummary {
	r.Seconds = 0
	r.Final = 0
	return r
}

func TestDecodeArtifact(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bell.octet")
	_, err := execute(t, "--config", twoChannels(t), "compile", "testdata/bell.yaml", "-o", out)
	require.NoError(t, err)

	var tables, stream []RecordSummary
	stdout, err := execute(t, "--format", "json", "decode", out)
	require.NoError(t, err)
	decodeResponse(t, stdout, &tables)

	stdout, err = execute(t, "--format", "json", "decode", out, "--stream")
	require.NoError(t, err)
	decodeResponse(t, stdout, &stream)

	require.Len(t, tables, 4)
	assert.Equal(t, tables, stream)
	assert.Equal(t, "z0", tables[1].Mod)
	assert.Equal(t, int64(640), tables[1].Cycles)
}

func TestDecodeStreamKeepsBoardsApart(t *testing.T) {
	out := filepath.Join(t.TempDir(), "two_boards.octet")
	_, err := execute(t, "--config", channels(t, 10), "compile", "testdata/two_boards.yaml", "-o", out)
	require.NoError(t, err)

	a, err := artifact.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, a.Stream, 2)

	var tables, stream []RecordSummary
	stdout, err := execute(t, "--format", "json", "decode", out)
	require.NoError(t, err)
	decodeResponse(t, stdout, &tables)

	stdout, err = execute(t, "--format", "json", "decode", out, "--stream")
	require.NoError(t, err)
	decodeResponse(t, stdout, &stream)
	assert.Equal(t, tables, stream)

	find := func(ch int) RecordSummary {
		for _, r := range stream {
			if r.Channel == ch && r.Mod == "a0" {
				return r
			}
		}
		t.Fatalf("no a0 record on channel %d", ch)
		return RecordSummary{}
	}
	first, second := find(0), find(8)
	assert.Equal(t, RecordSummary{Channel: 0, Mod: "a0", Segments: 2, Cycles: 600}, withoutFloats(first))
	assert.Equal(t, RecordSummary{Channel: 8, Mod: "a0", Segments: 2, Cycles: 600}, withoutFloats(second))
}

func TestDecodeMissingArtifact(t *testing.T) {
	_, err := execute(t, "decode", filepath.Join(t.TempDir(), "none.octet"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStreamListsWords(t *testing.T) {
	var words []StreamWord
	stdout, err := execute(t, "--format", "json", "--config", twoChannels(t), "stream", "testdata/bell.yaml")
	require.NoError(t, err)
	decodeResponse(t, stdout, &words)

	require.Len(t, words, 13)
	assert.Equal(t, 0, words[0].Channel)
	assert.Equal(t, "z0", words[0].Mod)
	assert.True(t, words[0].Trigger)
	assert.Len(t, words[0].Hex, 64)
}

func TestStreamReportsBoards(t *testing.T) {
	var words []StreamWord
	stdout, err := execute(t, "--format", "json", "--config", channels(t, 10), "stream", "testdata/two_boards.yaml", "--mask", "257")
	require.NoError(t, err)
	decodeResponse(t, stdout, &words)

	require.NotEmpty(t, words)
	boards := map[int]int{}
	for _, w := range words {
		assert.Contains(t, []int{0, 8}, w.Channel)
		assert.Equal(t, w.Channel/8, w.Board)
		boards[w.Board]++
	}
	assert.Equal(t, boards[0], boards[1])
}

func TestStreamMaskSelectsChannels(t *testing.T) {
	var words []StreamWord
	stdout, err := execute(t, "--format", "json", "--config", twoChannels(t), "stream", "testdata/bell.yaml", "--mask", "2")
	require.NoError(t, err)
	decodeResponse(t, stdout, &words)

	require.Len(t, words, 7)
	for _, w := range words {
		assert.Equal(t, 1, w.Channel)
	}
}

func TestBatchReportsEachCircuit(t *testing.T) {
	dir := t.TempDir()

	stdout, err := execute(t, "--format", "json", "--config", twoChannels(t),
		"batch", "testdata/bell.yaml", "testdata/unknown_gate.yaml", "-o", dir, "--jobs", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result BatchResult
	decodeResponse(t, stdout, &result)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 2)
	assert.True(t, result.Items[0].Pass)
	assert.Contains(t, result.Items[1].Error, "UNKNOWN_GATE")

	assert.FileExists(t, filepath.Join(dir, "bell.octet"))
	assert.NoFileExists(t, filepath.Join(dir, "unknown_gate.octet"))
}

func TestTestCommandRunsScenarios(t *testing.T) {
	stdout, err := execute(t, "test", "../harness/testdata/scenarios")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "2 passed, 0 failed, 2 total")
}

func TestTestCommandUpdatesGolden(t *testing.T) {
	golden := t.TempDir()

	_, err := execute(t, "test", "../harness/testdata/scenarios", "--filter", "bell*", "--golden", golden, "--update")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(golden, "bell_pair.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/bell_pair.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTestCommandMissingDir(t *testing.T) {
	_, err := execute(t, "test", "testdata/none")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := execute(t, "--config", twoChannels(t), "--metrics", path, "compile", "testdata/bell.yaml")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `octet_compiler_compiles_total{status="success"} 1`)
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, useColor("on", &buf))
	assert.False(t, useColor("off", &buf))
	assert.False(t, useColor("auto", &buf))
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
	assert.Equal(t, "x: "+assert.AnError.Error(), WrapExitError(ExitCommandError, "x", assert.AnError).Error())
}
