package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// Compilation is one archived program.
type Compilation struct {
	ID       string
	Seq      int64
	Hash     string // content hash of the bytecode
	Channels int
	Label    string // usually the circuit file name
	Source   string // circuit source text

	// One inner list per board.
	Programming [][]wire.Word
	Sequence    [][]wire.Word
}

// Boards is the number of boards c holds words for.
func (c *Compilation) Boards() int {
	return max(len(c.Programming), len(c.Sequence))
}

const (
	blockProgramming = "programming"
	blockSequence    = "sequence"
)

// Save archives c and returns its id. A compilation with the same hash is
// stored only once: saving it again returns the existing id and writes
// nothing. An empty c.ID is filled from the id generator.
func (s *Store) Save(ctx context.Context, c *Compilation) (string, error) {
	if c.Hash == "" {
		return "", errors.New("save compilation: empty hash")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "save compilation")
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM compilations WHERE hash = ?`, c.Hash).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", errors.Wrap(err, "save compilation")
	}

	id := c.ID
	if id == "" {
		id = s.ids.Generate()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO compilations (id, hash, channels, boards, label, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, c.Hash, c.Channels, c.Boards(), c.Label, c.Source)
	if err != nil {
		return "", errors.Wrap(err, "save compilation")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO words (compilation_id, board, block, idx, word)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", errors.Wrap(err, "save words")
	}
	defer stmt.Close()

	for block, boards := range map[string][][]wire.Word{
		blockProgramming: c.Programming,
		blockSequence:    c.Sequence,
	} {
		for b, words := range boards {
			for i, w := range words {
				if _, err := stmt.ExecContext(ctx, id, b, block, i, w.Bytes()); err != nil {
					return "", errors.Wrapf(err, "save %s word %d of board %d", block, i, b)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "save compilation")
	}
	return id, nil
}

// Delete removes a compilation and its words.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM compilations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete compilation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete compilation")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "delete %s", id)
	}
	return nil
}
