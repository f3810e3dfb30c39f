package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateTableRoundTrip(t *testing.T) {
	var entries []GateEntry
	for i := range 14 {
		entries = append(entries, GateEntry{ID: uint16(i), Start: uint16(3 * i), Stop: uint16(3*i + 2)})
	}
	entries = append(entries, GateEntry{ID: MaxGates - 1, Start: MaxSeqAddrs - 2, Stop: MaxSeqAddrs - 1})

	words, err := PackGateTable(6, entries)
	require.NoError(t, err)
	require.Len(t, words, 3, "15 entries at %d per word", GateEntriesPerWord)

	var got []GateEntry
	for _, w := range words {
		h := w.Header()
		assert.Equal(t, ModeProgramGateTable, h.Mode)
		assert.Equal(t, uint8(6), h.Channel)
		e, err := w.GateEntries()
		require.NoError(t, err)
		got = append(got, e...)
	}
	assert.Equal(t, entries, got)
}

func TestSequenceMapRoundTrip(t *testing.T) {
	var entries []MapEntry
	for i := range 20 {
		entries = append(entries, MapEntry{Address: uint16(i), Pulse: uint16(i % 3)})
	}

	words, err := PackSequenceMap(2, entries)
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, uint8(MapEntriesPerWord), words[0].Header().Count)
	assert.Equal(t, uint8(2), words[2].Header().Count)

	var got []MapEntry
	for _, w := range words {
		assert.Equal(t, ModeProgramSequenceMap, w.Header().Mode)
		e, err := w.MapEntries()
		require.NoError(t, err)
		got = append(got, e...)
	}
	assert.Equal(t, entries, got)
}

func TestRunRoundTrip(t *testing.T) {
	ids := make([]uint16, 50)
	for i := range ids {
		ids[i] = uint16(i * 7 % MaxGates)
	}

	words, err := PackRun(3, ids)
	require.NoError(t, err)
	require.Len(t, words, 3)

	var got []uint16
	for _, w := range words {
		assert.True(t, w.Header().Mode.IsRun())
		part, err := w.GateIDs()
		require.NoError(t, err)
		got = append(got, part...)
	}
	assert.Equal(t, ids, got)
}

func TestPulseTableEntry(t *testing.T) {
	pulse, err := PackPulse(Header{Mode: ModeProgramPulseTable, ModType: Phase1, Channel: 4, Shift: 2},
		Payload{Duration: 100, U: [4]int64{-3, 2, 1, 0}})
	require.NoError(t, err)

	w, err := PackPulseTableEntry(pulse, 1234, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), w.PulseAddress())
	assert.Equal(t, pulse.Payload(), w.Payload())
	assert.Equal(t, pulse, w.WithoutPulseAddress())

	_, err = PackPulseTableEntry(pulse, MaxPulseAddrs, 4)
	assert.ErrorIs(t, err, ErrFieldOverflow)
}

func TestProgrammingOverflow(t *testing.T) {
	_, err := PackGateTable(0, []GateEntry{{ID: MaxGates}})
	assert.ErrorIs(t, err, ErrFieldOverflow)

	_, err = PackSequenceMap(0, []MapEntry{{Address: MaxSeqAddrs}})
	assert.ErrorIs(t, err, ErrFieldOverflow)

	_, err = PackRun(0, []uint16{MaxGates})
	assert.ErrorIs(t, err, ErrFieldOverflow)
}

func TestEmptyProgramming(t *testing.T) {
	words, err := PackRun(0, nil)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestDecodeRejectsCountAboveCapacity(t *testing.T) {
	gates, err := PackGateTable(0, []GateEntry{{ID: 1, Start: 0, Stop: 0}})
	require.NoError(t, err)
	seqMap, err := PackSequenceMap(0, []MapEntry{{Address: 0, Pulse: 0}})
	require.NoError(t, err)
	run, err := PackRun(0, []uint16{1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		word   Word
		per    int
		decode func(Word) error
	}{
		{"gate table", gates[0], GateEntriesPerWord, func(w Word) error { _, err := w.GateEntries(); return err }},
		{"sequence map", seqMap[0], MapEntriesPerWord, func(w Word) error { _, err := w.MapEntries(); return err }},
		{"run", run[0], GateIDsPerWord, func(w Word) error { _, err := w.GateIDs(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full := tt.word.WithField(CountLSB, CountWidth, uint64(tt.per))
			assert.NoError(t, tt.decode(full))

			over := tt.word.WithField(CountLSB, CountWidth, uint64(tt.per+1))
			assert.ErrorIs(t, tt.decode(over), ErrRecordCount)

			top := tt.word.WithField(CountLSB, CountWidth, 1<<CountWidth-1)
			assert.ErrorIs(t, tt.decode(top), ErrRecordCount)
		})
	}
}
