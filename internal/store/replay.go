package store

import (
	"context"
	"maps"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/emulator"
)

// Replay loads a compilation and runs every board's programming and
// sequence blocks through its own emulator. Records are keyed by global
// channel. opts apply to every board's decoder; WithBoard is set per board.
func (s *Store) Replay(ctx context.Context, id string, opts ...emulator.Option) (map[emulator.Key]*emulator.Record, error) {
	c, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make(map[emulator.Key]*emulator.Record)
	for b := range c.Boards() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := emulator.NewDecoder(append(opts, emulator.WithBoard(b))...)
		if b < len(c.Programming) {
			if err := d.DecodeAll(c.Programming[b]); err != nil {
				return nil, errors.Wrapf(err, "replay %s board %d programming", id, b)
			}
		}
		if b < len(c.Sequence) {
			if err := d.DecodeAll(c.Sequence[b]); err != nil {
				return nil, errors.Wrapf(err, "replay %s board %d sequence", id, b)
			}
		}
		maps.Copy(out, d.Records())
	}
	return out, nil
}
