package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// Summary describes an archived compilation without its words.
type Summary struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Hash     string `json:"hash"`
	Channels int    `json:"channels"`
	Boards   int    `json:"boards"`
	Label    string `json:"label"`
	Words    int    `json:"words"`
}

// List returns every archived compilation.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the archive is empty.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.seq, c.hash, c.channels, c.boards, c.label,
		       (SELECT COUNT(*) FROM words w WHERE w.compilation_id = c.id)
		FROM compilations c
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query compilations")
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Seq, &sum.Hash, &sum.Channels, &sum.Boards, &sum.Label, &sum.Words); err != nil {
			return nil, errors.Wrap(err, "scan compilation")
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate compilations")
	}
	return out, nil
}

// Load returns the compilation with the given id, words included.
func (s *Store) Load(ctx context.Context, id string) (*Compilation, error) {
	c := &Compilation{}
	var boards int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, hash, channels, boards, label, source
		FROM compilations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Seq, &c.Hash, &c.Channels, &boards, &c.Label, &c.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "load %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", id)
	}

	c.Programming = make([][]wire.Word, boards)
	c.Sequence = make([][]wire.Word, boards)
	for b := range boards {
		c.Programming[b] = []wire.Word{}
		c.Sequence[b] = []wire.Word{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT board, block, word
		FROM words
		WHERE compilation_id = ?
		ORDER BY board ASC, block ASC, idx ASC
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query words")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			board int
			block string
			raw   []byte
		)
		if err := rows.Scan(&board, &block, &raw); err != nil {
			return nil, errors.Wrap(err, "scan word")
		}
		if board < 0 || board >= boards {
			return nil, errors.Errorf("load %s: word for board %d of %d", id, board, boards)
		}
		w, err := wire.FromBytes(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", id)
		}
		switch block {
		case blockProgramming:
			c.Programming[board] = append(c.Programming[board], w)
		case blockSequence:
			c.Sequence[board] = append(c.Sequence[board], w)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate words")
	}
	return c, nil
}
