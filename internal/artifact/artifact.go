// Package artifact reads and writes compiled bytecode files. An artifact
// is a msgpack document holding, per board, the programming and sequence
// blocks as raw concatenated words, plus the per-board bypass stream when
// requested.
package artifact

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// FormatVersion is bumped whenever the document layout changes.
const FormatVersion uint16 = 2

// ErrVersion is returned for a document of another format version.
var ErrVersion = errors.New("unsupported artifact version")

// Artifact is a compiled program ready to be sent to the hardware.
type Artifact struct {
	Hash     string
	Channels int
	Label    string

	// One inner list per board.
	Programming [][]wire.Word
	Sequence    [][]wire.Word

	// Stream is the time-ordered bypass rendition of the same circuit, one
	// inner list per board.
	Stream [][]wire.Word
}

type document struct {
	Version     uint16   `msgpack:"version"`
	Hash        string   `msgpack:"hash"`
	Channels    int      `msgpack:"channels"`
	Label       string   `msgpack:"label,omitempty"`
	Programming [][]byte `msgpack:"programming"`
	Sequence    [][]byte `msgpack:"sequence"`
	Stream      [][]byte `msgpack:"stream,omitempty"`
}

func concatBoards(boards [][]wire.Word) [][]byte {
	out := make([][]byte, len(boards))
	for i, b := range boards {
		out[i] = wire.Concat(b)
	}
	return out
}

func splitBoards(raw [][]byte) ([][]wire.Word, error) {
	out := make([][]wire.Word, len(raw))
	for i, b := range raw {
		words, err := wire.Split(b)
		if err != nil {
			return nil, errors.Wrapf(err, "board %d", i)
		}
		if words == nil {
			words = []wire.Word{}
		}
		out[i] = words
	}
	return out, nil
}

// Write encodes a to w.
func Write(w io.Writer, a *Artifact) error {
	doc := document{
		Version:     FormatVersion,
		Hash:        a.Hash,
		Channels:    a.Channels,
		Label:       a.Label,
		Programming: concatBoards(a.Programming),
		Sequence:    concatBoards(a.Sequence),
	}
	if wire.Count(a.Stream) > 0 {
		doc.Stream = concatBoards(a.Stream)
	}
	return errors.Wrap(msgpack.NewEncoder(w).Encode(&doc), "encode artifact")
}

// Read decodes an artifact from r.
func Read(r io.Reader) (*Artifact, error) {
	var doc document
	if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode artifact")
	}
	if doc.Version != FormatVersion {
		return nil, errors.Wrapf(ErrVersion, "version %d", doc.Version)
	}

	a := &Artifact{Hash: doc.Hash, Channels: doc.Channels, Label: doc.Label}
	var err error
	if a.Programming, err = splitBoards(doc.Programming); err != nil {
		return nil, errors.Wrap(err, "programming block")
	}
	if a.Sequence, err = splitBoards(doc.Sequence); err != nil {
		return nil, errors.Wrap(err, "sequence block")
	}
	if len(doc.Stream) > 0 {
		if a.Stream, err = splitBoards(doc.Stream); err != nil {
			return nil, errors.Wrap(err, "stream")
		}
	}
	return a, nil
}

// WriteFile writes a to path, replacing any existing file atomically.
func WriteFile(path string, a *Artifact) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err = Write(f, a); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadFile reads the artifact at path.
func ReadFile(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
