package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

func sliceOf(t *testing.T, channels int, segs ...PulseSegment) *GateSlice {
	t.Helper()
	g := NewGateSlice(channels)
	for _, s := range segs {
		require.NoError(t, g.Add(s))
	}
	return g
}

func TestMergePadsToLongestChannel(t *testing.T) {
	a := sliceOf(t, 2, PulseSegment{Channel: 0, ModType: wire.Amp0, Duration: 10})
	b := sliceOf(t, 2, PulseSegment{Channel: 1, ModType: wire.Amp0, Duration: 14})

	merged := a.Merge(b).MakeDurationsEqual()

	assert.Equal(t, int64(14), merged.Duration(0))
	assert.Equal(t, int64(14), merged.Duration(1))
	require.Len(t, merged.Segments(0), 2)
	assert.Equal(t, Nop(0, 4), merged.Segments(0)[1])
	assert.Len(t, merged.Segments(1), 1)
}

func TestMergeKeepsOrder(t *testing.T) {
	first := PulseSegment{Channel: 0, Duration: 5}
	second := PulseSegment{Channel: 0, Duration: 6}

	merged := sliceOf(t, 1, first).Merge(sliceOf(t, 1, second))

	assert.Equal(t, []PulseSegment{first, second}, merged.Segments(0))
}

func TestMakeDurationsEqualLeavesInputUntouched(t *testing.T) {
	g := sliceOf(t, 2, PulseSegment{Channel: 1, Duration: 20})

	padded := g.MakeDurationsEqual()

	assert.Empty(t, g.Segments(0))
	assert.Equal(t, []PulseSegment{Nop(0, 20)}, padded.Segments(0))
}

func TestPadChannelsSkipsInactive(t *testing.T) {
	g := sliceOf(t, 3, PulseSegment{Channel: 2, Duration: 8})

	padded := g.PadChannels(map[int]bool{1: true, 2: true})

	assert.Empty(t, padded.Segments(0))
	assert.Equal(t, []PulseSegment{Nop(1, 8)}, padded.Segments(1))
	assert.Len(t, padded.Segments(2), 1)
}

func TestAddRejectsBadChannel(t *testing.T) {
	g := NewGateSlice(2)
	assert.Error(t, g.Add(PulseSegment{Channel: 2, Duration: 5}))
	assert.Error(t, g.Add(PulseSegment{Channel: 0, Duration: -5}))
	assert.Nil(t, g.Segments(5))
}

func TestWithDelaysOnlyTouchesTriggered(t *testing.T) {
	g := sliceOf(t, 2,
		PulseSegment{Channel: 0, Duration: 5, WaitTrigger: true},
		PulseSegment{Channel: 1, Duration: 5},
		PulseSegment{Channel: 1, Duration: 5, WaitTrigger: true},
	)

	delayed := g.WithDelays(func(ch int) int64 { return int64(10 * (ch + 1)) })

	assert.Equal(t, int64(10), delayed.Segments(0)[0].Delay)
	assert.Equal(t, int64(0), delayed.Segments(1)[0].Delay)
	assert.Equal(t, int64(20), delayed.Segments(1)[1].Delay)
	assert.Equal(t, int64(0), g.Segments(0)[0].Delay)
}
