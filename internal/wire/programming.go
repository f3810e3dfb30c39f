package wire

import (
	"fortio.org/safecast"
	"github.com/pkg/errors"
)

// GateEntry is one gate-table record: gate ID → inclusive range of
// sequence-map addresses.
type GateEntry struct {
	ID    uint16
	Start uint16
	Stop  uint16
}

// MapEntry is one sequence-map record: address → pulse-table index.
type MapEntry struct {
	Address uint16
	Pulse   uint16
}

// ErrRecordCount is returned when a word's count field exceeds the number
// of records its payload can hold.
var ErrRecordCount = errors.New("record count exceeds word capacity")

// records reads the count field of w, bounded by per.
func (w Word) records(per int) (int, error) {
	n := int(w.Field(CountLSB, CountWidth))
	if n > per {
		return 0, errors.Wrapf(ErrRecordCount, "%s word holds %d records, count is %d", w.Header().Mode, per, n)
	}
	return n, nil
}

func programHeader(mode Mode, channel uint8, n int) (Word, error) {
	count, err := safecast.Conv[uint8](n)
	if err != nil {
		return Word{}, errors.Wrap(ErrFieldOverflow, err.Error())
	}
	return Word{}.WithHeader(Header{Mode: mode, Channel: channel, Count: count})
}

// chunks splits n records into groups of at most per.
func chunks(n, per int) [][2]int {
	var out [][2]int
	for lo := 0; lo < n; lo += per {
		out = append(out, [2]int{lo, min(lo+per, n)})
	}
	return out
}

// PackGateTable encodes gate-table programming words, GateEntriesPerWord
// records per word.
func PackGateTable(channel uint8, entries []GateEntry) ([]Word, error) {
	var words []Word
	for _, c := range chunks(len(entries), GateEntriesPerWord) {
		w, err := programHeader(ModeProgramGateTable, channel, c[1]-c[0])
		if err != nil {
			return nil, err
		}
		for i, e := range entries[c[0]:c[1]] {
			if uint(e.ID) >= MaxGates || uint(e.Start) >= MaxSeqAddrs || uint(e.Stop) >= MaxSeqAddrs {
				return nil, errors.Wrapf(ErrFieldOverflow, "gate entry %+v", e)
			}
			rec := uint64(e.Start) | uint64(e.Stop)<<SeqAddrBits | uint64(e.ID)<<(2*SeqAddrBits)
			w = w.WithField(uint(i*GateEntryBits), GateEntryBits, rec)
		}
		words = append(words, w)
	}
	return words, nil
}

// GateEntries decodes the records of a gate-table programming word.
func (w Word) GateEntries() ([]GateEntry, error) {
	n, err := w.records(GateEntriesPerWord)
	if err != nil {
		return nil, err
	}
	entries := make([]GateEntry, 0, n)
	for i := range n {
		rec := w.Field(uint(i*GateEntryBits), GateEntryBits)
		entries = append(entries, GateEntry{
			Start: uint16(rec & mask(SeqAddrBits)),
			Stop:  uint16((rec >> SeqAddrBits) & mask(SeqAddrBits)),
			ID:    uint16((rec >> (2 * SeqAddrBits)) & mask(GateAddrBits)),
		})
	}
	return entries, nil
}

// PackSequenceMap encodes sequence-map programming words, MapEntriesPerWord
// records per word.
func PackSequenceMap(channel uint8, entries []MapEntry) ([]Word, error) {
	var words []Word
	for _, c := range chunks(len(entries), MapEntriesPerWord) {
		w, err := programHeader(ModeProgramSequenceMap, channel, c[1]-c[0])
		if err != nil {
			return nil, err
		}
		for i, e := range entries[c[0]:c[1]] {
			if uint(e.Address) >= MaxSeqAddrs || uint(e.Pulse) >= MaxPulseAddrs {
				return nil, errors.Wrapf(ErrFieldOverflow, "sequence map entry %+v", e)
			}
			rec := uint64(e.Pulse) | uint64(e.Address)<<PulseAddrBits
			w = w.WithField(uint(i*MapEntryBits), MapEntryBits, rec)
		}
		words = append(words, w)
	}
	return words, nil
}

// MapEntries decodes the records of a sequence-map programming word.
func (w Word) MapEntries() ([]MapEntry, error) {
	n, err := w.records(MapEntriesPerWord)
	if err != nil {
		return nil, err
	}
	entries := make([]MapEntry, 0, n)
	for i := range n {
		rec := w.Field(uint(i*MapEntryBits), MapEntryBits)
		entries = append(entries, MapEntry{
			Pulse:   uint16(rec & mask(PulseAddrBits)),
			Address: uint16((rec >> PulseAddrBits) & mask(SeqAddrBits)),
		})
	}
	return entries, nil
}

// PackPulseTableEntry turns a pulse word into the programming word that
// stores it at address. The pulse keeps its own header apart from the mode.
func PackPulseTableEntry(pulse Word, address uint16, channel uint8) (Word, error) {
	h := pulse.Header()
	h.Mode = ModeProgramPulseTable
	h.Channel = channel
	w, err := pulse.WithHeader(h)
	if err != nil {
		return w, err
	}
	return w.setChecked("pulse_address", PulseAddrLSB, PulseAddrBits, uint64(address))
}

// PulseAddress is the pulse-table address of a ProgramPulseTable word.
func (w Word) PulseAddress() uint16 {
	return uint16(w.Field(PulseAddrLSB, PulseAddrBits))
}

// WithoutPulseAddress clears the address field, leaving the stored content.
func (w Word) WithoutPulseAddress() Word {
	return w.WithField(PulseAddrLSB, PulseAddrBits, 0)
}

// PackRun encodes the gate sequence of one channel as run words,
// GateIDsPerWord IDs per word.
func PackRun(channel uint8, ids []uint16) ([]Word, error) {
	var words []Word
	for _, c := range chunks(len(ids), GateIDsPerWord) {
		w, err := programHeader(ModeRun, channel, c[1]-c[0])
		if err != nil {
			return nil, err
		}
		for i, id := range ids[c[0]:c[1]] {
			if uint(id) >= MaxGates {
				return nil, errors.Wrapf(ErrFieldOverflow, "gate id %d", id)
			}
			w = w.WithField(uint(i*GateAddrBits), GateAddrBits, uint64(id))
		}
		words = append(words, w)
	}
	return words, nil
}

// GateIDs decodes the gate sequence carried by a run word.
func (w Word) GateIDs() ([]uint16, error) {
	n, err := w.records(GateIDsPerWord)
	if err != nil {
		return nil, err
	}
	ids := make([]uint16, n)
	for i := range n {
		ids[i] = uint16(w.Field(uint(i*GateAddrBits), GateAddrBits))
	}
	return ids, nil
}
