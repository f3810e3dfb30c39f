// Package config loads octet.toml, the project file shared by the CLI
// commands. Command-line flags override file values.
package config

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/compiler"
	"github.com/haikusw/JaqalPaw/internal/provider"
	"github.com/haikusw/JaqalPaw/internal/timing"
)

// FileName is the project file looked up by Find.
const FileName = "octet.toml"

// DefaultChannels is the channel count of a single board.
const DefaultChannels = 8

// Config is the content of octet.toml.
type Config struct {
	Channels int `toml:"channels"`

	// GlobalDelay in seconds. Positive delays channel 0 after every
	// trigger; negative delays every other channel by its magnitude.
	// Unset disables delays.
	GlobalDelay *float64 `toml:"global_delay"`

	// ChannelMask selects output channels; unset selects all.
	ChannelMask *uint64 `toml:"channel_mask"`

	InitializeGate string `toml:"initialize_gate"`

	// Pulses is the CUE file of gate definitions, relative to the
	// project file.
	Pulses string `toml:"pulses"`

	// Overrides replace let constants of the circuit.
	Overrides map[string]float64 `toml:"overrides"`

	// Delays sets per-channel delays in clock cycles, keyed by channel.
	Delays map[string]int64 `toml:"delays"`

	// Path is the file the config was loaded from; empty for defaults.
	Path string `toml:"-"`
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return &Config{
		Channels:       DefaultChannels,
		InitializeGate: provider.PrepareAll,
	}
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, errors.Wrap(err, "failed to resolve start directory")
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, errors.Wrapf(err, "failed to stat %q", candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads a project file. Unset keys keep their defaults; unknown keys
// are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to parse TOML", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.InitializeGate) == "" {
		cfg.InitializeGate = provider.PrepareAll
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Discover loads the project file found from startDir, or the defaults when
// there is none.
func Discover(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Channels < 1 || c.Channels > compiler.MaxChannels {
		return errors.Errorf("channels = %d, must be in 1..%d", c.Channels, compiler.MaxChannels)
	}
	_, err := c.channelDelays()
	return err
}

func (c *Config) channelDelays() (map[int]int64, error) {
	out := make(map[int]int64, len(c.Delays))
	for key, cycles := range c.Delays {
		ch, err := strconv.Atoi(key)
		if err != nil || ch < 0 || ch >= c.Channels {
			return nil, errors.Errorf("[delays] key %q is not a channel in 0..%d", key, c.Channels-1)
		}
		if cycles < 0 {
			return nil, errors.Errorf("[delays] channel %d has negative delay %d", ch, cycles)
		}
		out[ch] = cycles
	}
	return out, nil
}

// DelayMap builds the delay settings, or nil when delays are disabled.
func (c *Config) DelayMap() (*timing.DelayMap, error) {
	delays, err := c.channelDelays()
	if err != nil {
		return nil, err
	}
	if c.GlobalDelay == nil && len(delays) == 0 {
		return nil, nil
	}
	var global float64
	if c.GlobalDelay != nil {
		global = *c.GlobalDelay
	}
	m := timing.NewDelayMapSeconds(global)
	for _, ch := range slices.Sorted(maps.Keys(delays)) {
		m.Set(ch, delays[ch])
	}
	return m, nil
}

// Mask returns the configured channel mask, or every channel.
func (c *Config) Mask() compiler.ChannelMask {
	if c.ChannelMask == nil {
		return compiler.AllChannels(c.Channels)
	}
	return compiler.ChannelMask(*c.ChannelMask)
}

// PulsesPath resolves Pulses against the project file's directory.
func (c *Config) PulsesPath() string {
	if c.Pulses == "" || filepath.IsAbs(c.Pulses) || c.Path == "" {
		return c.Pulses
	}
	return filepath.Join(filepath.Dir(c.Path), c.Pulses)
}
