package lut

import (
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// Bounds is the inclusive sequence-map address range of one gate.
type Bounds struct {
	Start uint16
	Stop  uint16
}

// Len is the number of addresses in b.
func (b Bounds) Len() int {
	return int(b.Stop) - int(b.Start) + 1
}

// Channel holds the three tables of one channel.
type Channel struct {
	Gates       map[uint16]Bounds
	SequenceMap map[uint16]uint16
	Pulses      map[uint16]wire.Word

	// content index of Pulses, maintained by AddPulse only
	byContent map[wire.Word]uint16
}

func newChannel() *Channel {
	return &Channel{
		Gates:       make(map[uint16]Bounds),
		SequenceMap: make(map[uint16]uint16),
		Pulses:      make(map[uint16]wire.Word),
		byContent:   make(map[wire.Word]uint16),
	}
}

// Store is the set of lookup tables of every channel.
type Store struct {
	channels map[int]*Channel
}

// New returns an empty store.
func New() *Store {
	return &Store{channels: make(map[int]*Channel)}
}

// Channel returns the tables of ch, creating them on first use.
func (s *Store) Channel(ch int) *Channel {
	c, ok := s.channels[ch]
	if !ok {
		c = newChannel()
		s.channels[ch] = c
	}
	return c
}

// Lookup returns the tables of ch without creating them.
func (s *Store) Lookup(ch int) (*Channel, bool) {
	c, ok := s.channels[ch]
	return c, ok
}

// Channels lists the channels holding tables, ascending.
func (s *Store) Channels() []int {
	return slices.Sorted(maps.Keys(s.channels))
}

// AddPulse stores w in the pulse table of ch unless an identical word is
// already there, and returns its index.
func (s *Store) AddPulse(ch int, w wire.Word) (uint16, error) {
	c := s.Channel(ch)
	if idx, ok := c.byContent[w]; ok {
		return idx, nil
	}
	if len(c.Pulses) >= wire.MaxPulseAddrs {
		return 0, &InconsistencyError{Kind: KindAddressOverflow, Channel: ch, Key: len(c.Pulses)}
	}
	idx := uint16(len(c.Pulses))
	for {
		if _, taken := c.Pulses[idx]; !taken {
			break
		}
		idx = (idx + 1) % wire.MaxPulseAddrs
	}
	c.Pulses[idx] = w
	c.byContent[w] = idx
	return idx, nil
}

// MapAddress points sequence-map address addr of ch at pulse index pulse.
func (s *Store) MapAddress(ch int, addr, pulse uint16) error {
	if int(addr) >= wire.MaxSeqAddrs {
		return &InconsistencyError{Kind: KindAddressOverflow, Channel: ch, Key: int(addr)}
	}
	s.Channel(ch).SequenceMap[addr] = pulse
	return nil
}

// DefineGate records the sequence-map range of gate gid on ch.
func (s *Store) DefineGate(ch int, gid uint16, b Bounds) error {
	switch {
	case int(gid) >= wire.MaxGates:
		return &InconsistencyError{Kind: KindAddressOverflow, Channel: ch, Key: int(gid)}
	case b.Start > b.Stop:
		return &InconsistencyError{Kind: KindInvalidBounds, Channel: ch, Key: int(gid)}
	}
	s.Channel(ch).Gates[gid] = b
	return nil
}

// ProgramGateTable applies a gate-table programming word to ch. A word
// whose count exceeds its capacity is rejected before any entry is written.
func (s *Store) ProgramGateTable(ch int, w wire.Word) error {
	entries, err := w.GateEntries()
	if err != nil {
		return RecordCountError(ch, w, err)
	}
	for _, e := range entries {
		if err := s.DefineGate(ch, e.ID, Bounds{Start: e.Start, Stop: e.Stop}); err != nil {
			return err
		}
	}
	return nil
}

// ProgramSequenceMap applies a sequence-map programming word to ch. A word
// whose count exceeds its capacity is rejected before any entry is written.
func (s *Store) ProgramSequenceMap(ch int, w wire.Word) error {
	entries, err := w.MapEntries()
	if err != nil {
		return RecordCountError(ch, w, err)
	}
	for _, e := range entries {
		if err := s.MapAddress(ch, e.Address, e.Pulse); err != nil {
			return err
		}
	}
	return nil
}

// ProgramPulseTable stores the pulse carried by w at the address encoded in
// w. The address bits are cleared before storing. Overwriting an address
// drops the replaced word from the content index.
func (s *Store) ProgramPulseTable(ch int, w wire.Word) {
	c := s.Channel(ch)
	addr := w.PulseAddress()
	old, replaced := c.Pulses[addr]
	stored := w.WithoutPulseAddress()
	c.Pulses[addr] = stored
	if replaced && old != stored {
		if idx, ok := c.byContent[old]; ok && idx == addr {
			delete(c.byContent, old)
			c.reindex(old)
		}
	}
	if _, ok := c.byContent[stored]; !ok {
		c.byContent[stored] = addr
	}
}

// reindex points the content index of w at the lowest address still
// holding it, if any.
func (c *Channel) reindex(w wire.Word) {
	for _, idx := range slices.Sorted(maps.Keys(c.Pulses)) {
		if c.Pulses[idx] == w {
			c.byContent[w] = idx
			return
		}
	}
}

// ResolveGate expands gate gid of ch into its pulse words in address order.
func (s *Store) ResolveGate(ch int, gid uint16) ([]wire.Word, error) {
	c, ok := s.channels[ch]
	if !ok {
		return nil, &InconsistencyError{Kind: KindUndefinedGate, Channel: ch, Key: int(gid)}
	}
	b, ok := c.Gates[gid]
	if !ok {
		return nil, &InconsistencyError{Kind: KindUndefinedGate, Channel: ch, Key: int(gid)}
	}
	words := make([]wire.Word, 0, b.Len())
	for addr := int(b.Start); addr <= int(b.Stop); addr++ {
		idx, ok := c.SequenceMap[uint16(addr)]
		if !ok {
			return nil, &InconsistencyError{Kind: KindUndefinedAddress, Channel: ch, Key: addr}
		}
		w, ok := c.Pulses[idx]
		if !ok {
			return nil, &InconsistencyError{Kind: KindUndefinedPulse, Channel: ch, Key: int(idx)}
		}
		words = append(words, w)
	}
	return words, nil
}

// ProgrammingWords encodes the tables of ch as programming words: the gate
// table, then the sequence map, then the pulse table, each in ascending key
// order. The board-local channel is ch modulo the board width.
func (s *Store) ProgrammingWords(ch int) ([]wire.Word, error) {
	c, ok := s.channels[ch]
	if !ok {
		return nil, nil
	}
	local := uint8(ch % wire.ChannelsPerBoard)

	gates := make([]wire.GateEntry, 0, len(c.Gates))
	for _, gid := range slices.Sorted(maps.Keys(c.Gates)) {
		b := c.Gates[gid]
		gates = append(gates, wire.GateEntry{ID: gid, Start: b.Start, Stop: b.Stop})
	}
	words, err := wire.PackGateTable(local, gates)
	if err != nil {
		return nil, errors.Wrapf(err, "gate table of channel %d", ch)
	}

	entries := make([]wire.MapEntry, 0, len(c.SequenceMap))
	for _, addr := range slices.Sorted(maps.Keys(c.SequenceMap)) {
		entries = append(entries, wire.MapEntry{Address: addr, Pulse: c.SequenceMap[addr]})
	}
	seq, err := wire.PackSequenceMap(local, entries)
	if err != nil {
		return nil, errors.Wrapf(err, "sequence map of channel %d", ch)
	}
	words = append(words, seq...)

	for _, idx := range slices.Sorted(maps.Keys(c.Pulses)) {
		w, err := wire.PackPulseTableEntry(c.Pulses[idx], idx, local)
		if err != nil {
			return nil, errors.Wrapf(err, "pulse %d of channel %d", idx, ch)
		}
		words = append(words, w)
	}
	return words, nil
}

// Equal reports whether s and other hold the same tables.
func (s *Store) Equal(other *Store) bool {
	if len(s.channels) != len(other.channels) {
		return false
	}
	for ch, c := range s.channels {
		o, ok := other.channels[ch]
		if !ok {
			return false
		}
		if !maps.Equal(c.Gates, o.Gates) || !maps.Equal(c.SequenceMap, o.SequenceMap) || !maps.Equal(c.Pulses, o.Pulses) {
			return false
		}
	}
	return true
}
