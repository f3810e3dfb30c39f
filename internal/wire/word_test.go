package wire

import (
	"math/rand"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBypassWordGolden(t *testing.T) {
	w, err := PackBypass(
		Header{ModType: Amp0, Shift: 3, Channel: 5, WaitTrigger: true, EnableMask: 0b10},
		Payload{Duration: 9, U: [4]int64{5, -1, 0, 7}},
	)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "bypass_word", []byte(w.Hex()+"\n"))
}

func TestBypassRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	coeff := func() int64 { return rng.Int63n(MaxCoeff-MinCoeff) + MinCoeff }

	for i := 0; i < 500; i++ {
		h := Header{
			ModType:     ModType(rng.Intn(NumModTypes)),
			Shift:       uint8(rng.Intn(32)),
			Channel:     uint8(rng.Intn(ChannelsPerBoard)),
			WaitTrigger: rng.Intn(2) == 1,
			EnableMask:  uint8(rng.Intn(4)),
		}
		p := Payload{
			Duration: rng.Int63n(MaxCoeff),
			U:        [4]int64{coeff(), coeff(), coeff(), coeff()},
		}

		w, err := PackBypass(h, p)
		require.NoError(t, err)

		got := w.Header()
		h.Mode = ModeBypass
		assert.Equal(t, h, got)
		assert.Equal(t, p, w.Payload())
	}
}

func TestPayloadBoundaries(t *testing.T) {
	for _, u := range []int64{MinCoeff, -1, 0, 1, MaxCoeff} {
		w, err := PackBypass(Header{}, Payload{Duration: 4, U: [4]int64{u, u, u, u}})
		require.NoError(t, err)
		assert.Equal(t, [4]int64{u, u, u, u}, w.Payload().U)
	}
}

func TestPackRejectsOverflow(t *testing.T) {
	_, err := PackBypass(Header{}, Payload{Duration: 4, U: [4]int64{MaxCoeff + 1}})
	assert.ErrorIs(t, err, ErrFieldOverflow)

	_, err = PackBypass(Header{}, Payload{Duration: -1})
	assert.ErrorIs(t, err, ErrFieldOverflow)

	_, err = PackBypass(Header{Channel: ChannelsPerBoard}, Payload{Duration: 4})
	assert.ErrorIs(t, err, ErrFieldOverflow)

	_, err = PackBypass(Header{Shift: 32}, Payload{Duration: 4})
	assert.ErrorIs(t, err, ErrFieldOverflow)
}

func TestFieldsDoNotOverlap(t *testing.T) {
	w, err := PackBypass(Header{
		ModType:     FrameRot1,
		Shift:       31,
		Channel:     7,
		WaitTrigger: true,
		EnableMask:  3,
	}, Payload{})
	require.NoError(t, err)

	assert.Equal(t, Payload{}, w.Payload(), "header bits leaked into payload")
	assert.Equal(t, uint16(0), w.PulseAddress())
	assert.Equal(t, uint8(0), w.Header().Count)
}

func TestSplitConcat(t *testing.T) {
	a, err := PackBypass(Header{Channel: 1}, Payload{Duration: 10})
	require.NoError(t, err)
	b, err := PackBypass(Header{Channel: 2}, Payload{Duration: 20})
	require.NoError(t, err)

	buf := Concat([]Word{a, b})
	assert.Len(t, buf, 2*WordBytes)

	words, err := Split(buf)
	require.NoError(t, err)
	assert.Equal(t, []Word{a, b}, words)

	_, err = Split(buf[:40])
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "bypass", ModeBypass.String())
	assert.Equal(t, "run", Mode(0b101).String())
	assert.Equal(t, "run", Mode(0b110).String())
	assert.Equal(t, "mode(000)", ModeInvalid.String())
}

func TestParseModType(t *testing.T) {
	for i := range NumModTypes {
		m := ModType(i)
		parsed, err := ParseModType(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseModType("x9")
	assert.Error(t, err)

	assert.True(t, Freq1.IsFrequency())
	assert.True(t, Amp0.IsAmplitude())
	assert.True(t, FrameRot0.IsPhase())
}
