package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haikusw/JaqalPaw/internal/compiler"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
channels = 10
global_delay = -1e-6
channel_mask = 5
pulses = "pulses/gates.cue"

[overrides]
theta = 0.5

[delays]
3 = 40
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Channels)
	assert.Equal(t, "prepare_all", cfg.InitializeGate)
	assert.Equal(t, compiler.ChannelMask(5), cfg.Mask())
	assert.Equal(t, map[string]float64{"theta": 0.5}, cfg.Overrides)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "pulses/gates.cue"), cfg.PulsesPath())

	delays, err := cfg.DelayMap()
	require.NoError(t, err)
	require.NotNil(t, delays)
	assert.Equal(t, int64(0), delays.Delay(0))
	assert.Equal(t, int64(410), delays.Delay(1))
	assert.Equal(t, int64(40), delays.Delay(3))
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, compiler.AllChannels(8), cfg.Mask())
	delays, err := cfg.DelayMap()
	require.NoError(t, err)
	assert.Nil(t, delays, "no delays configured")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "chanels = 8\n"},
		{"bad syntax", "channels = \n"},
		{"too many channels", "channels = 65\n"},
		{"bad delay key", "[delays]\nx = 1\n"},
		{"delay out of range", "channels = 2\n[delays]\n2 = 1\n"},
		{"negative delay", "[delays]\n0 = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileKeepsCause(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, ok := errors.Cause(err).(*os.PathError)
	assert.True(t, ok, "cause %T", errors.Cause(err))
	assert.Contains(t, err.Error(), path)
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "channels = 3\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Channels)
	assert.Equal(t, filepath.Join(root, FileName), cfg.Path)
}

func TestDiscoverWithoutFile(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultChannels, cfg.Channels)
	assert.Empty(t, cfg.Path)
}
