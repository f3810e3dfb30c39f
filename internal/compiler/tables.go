package compiler

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/lut"
)

func overflow(ch int, format string, args ...any) *ir.CompileError {
	return &ir.CompileError{
		Code:    ir.ErrCodeTableOverflow,
		Channel: ch,
		Message: fmt.Sprintf(format, args...),
	}
}

// tableError maps lut capacity errors to compile errors.
func tableError(ch int, err error) error {
	if lut.IsInconsistency(err, lut.KindAddressOverflow) {
		return overflow(ch, "%v", err)
	}
	return err
}

// tables assembles the lookup tables of every channel. Gates are laid out
// in id order on consecutive sequence-map addresses; identical pulse words
// share one pulse-table entry.
func (s *State) tables() (*lut.Store, error) {
	store := lut.New()
	for ch, c := range s.channels {
		var addr uint16
		for gid, h := range c.ranked {
			start := addr
			for _, seg := range c.gates[h] {
				words, err := seg.Words(false)
				if err != nil {
					return nil, &ir.CompileError{Code: ir.ErrCodeBadArguments, Channel: ch, Message: err.Error()}
				}
				for _, w := range words {
					idx, err := store.AddPulse(ch, w)
					if err != nil {
						return nil, tableError(ch, err)
					}
					if err := store.MapAddress(ch, addr, idx); err != nil {
						return nil, tableError(ch, err)
					}
					addr++
				}
			}
			id, err := safecast.Conv[uint16](gid)
			if err != nil {
				return nil, overflow(ch, "gate id %d", gid)
			}
			if err := store.DefineGate(ch, id, lut.Bounds{Start: start, Stop: addr - 1}); err != nil {
				return nil, tableError(ch, err)
			}
		}
	}
	return store, nil
}
