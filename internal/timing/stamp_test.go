package timing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

func word(t *testing.T, ch uint8, mod wire.ModType, dur int64) wire.Word {
	t.Helper()
	w, err := wire.PackBypass(wire.Header{Channel: ch, ModType: mod}, wire.Payload{Duration: dur})
	require.NoError(t, err)
	return w
}

func TestStampIsContiguousPerStream(t *testing.T) {
	stamped, err := Stamp([]wire.Word{
		word(t, 0, wire.Amp0, 10),
		word(t, 0, wire.Freq0, 7),
		word(t, 0, wire.Amp0, 20),
		word(t, 1, wire.Amp0, 5),
		word(t, 0, wire.Amp0, 1),
	})
	require.NoError(t, err)

	starts := make([]int64, len(stamped))
	for i, s := range stamped {
		starts[i] = s.Start
	}
	assert.Equal(t, []int64{0, 0, 10, 0, 30}, starts)
	assert.Equal(t, int64(31), stamped[4].End())
}

func TestAfterRejectsOtherChannel(t *testing.T) {
	a := TimeStampedWord{Channel: 0, Duration: 5}
	b := TimeStampedWord{Channel: 1, Duration: 5}

	_, err := b.After(a)
	var addErr *AdditionError
	require.ErrorAs(t, err, &addErr)
	assert.Equal(t, 1, addErr.Channel)
	assert.Equal(t, 0, addErr.Other)

	c, err := TimeStampedWord{Channel: 0, Duration: 3}.After(a)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Start)
}

func TestSortTieBreak(t *testing.T) {
	words := []TimeStampedWord{
		{Channel: 0, ModType: wire.Phase0, Start: 0},
		{Channel: 1, ModType: wire.Freq0, Start: 0},
		{Channel: 0, ModType: wire.Freq0, Start: 0},
		{Channel: 0, ModType: wire.Freq0, Start: 4},
	}

	Sort(words)

	assert.Equal(t, TimeStampedWord{Channel: 0, ModType: wire.Freq0, Start: 0}, words[0])
	assert.Equal(t, TimeStampedWord{Channel: 1, ModType: wire.Freq0, Start: 0}, words[1])
	assert.Equal(t, TimeStampedWord{Channel: 0, ModType: wire.Phase0, Start: 0}, words[2])
	assert.Equal(t, int64(4), words[3].Start)
}

func TestSortIsStable(t *testing.T) {
	a := TimeStampedWord{Word: wire.Word{1}}
	b := TimeStampedWord{Word: wire.Word{2}}

	words := []TimeStampedWord{a, b}
	Sort(words)
	assert.Equal(t, []TimeStampedWord{a, b}, words)
}

func TestTimeSort(t *testing.T) {
	long := word(t, 0, wire.Amp0, 100)
	next := word(t, 0, wire.Amp0, 10)
	other := word(t, 1, wire.Freq1, 50)

	sorted, err := TimeSort([]wire.Word{long, next, other})
	require.NoError(t, err)
	assert.Equal(t, []wire.Word{long, other, next}, sorted)
}
