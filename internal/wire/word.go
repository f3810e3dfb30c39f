package wire

import (
	"encoding/hex"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ErrFieldOverflow is returned when a value does not fit its bit field.
var ErrFieldOverflow = errors.New("field overflow")

// Word is one 256-bit hardware word in wire byte order (little-endian).
// Words are comparable, so they can be used directly as map keys for
// content addressing.
type Word [WordBytes]byte

// FromBytes copies a 32-byte record into a Word.
func FromBytes(b []byte) (Word, error) {
	var w Word
	if len(b) != WordBytes {
		return w, errors.Errorf("word must be %d bytes, got %d", WordBytes, len(b))
	}
	copy(w[:], b)
	return w, nil
}

// Bytes returns a copy of the wire bytes.
func (w Word) Bytes() []byte {
	out := make([]byte, WordBytes)
	copy(out, w[:])
	return out
}

// Hex renders the wire bytes as lowercase hex, byte 0 first.
func (w Word) Hex() string {
	return hex.EncodeToString(w[:])
}

func (w Word) String() string {
	return w.Hex()
}

// Concat joins words into one transfer buffer.
func Concat(words []Word) []byte {
	out := make([]byte, 0, len(words)*WordBytes)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// Count is the number of words over every board.
func Count(boards [][]Word) int {
	n := 0
	for _, b := range boards {
		n += len(b)
	}
	return n
}

// Split cuts a transfer buffer back into words.
func Split(b []byte) ([]Word, error) {
	if len(b)%WordBytes != 0 {
		return nil, errors.Errorf("buffer length %d is not a multiple of %d", len(b), WordBytes)
	}
	words := make([]Word, len(b)/WordBytes)
	for i := range words {
		copy(words[i][:], b[i*WordBytes:])
	}
	return words, nil
}

// toInt converts the little-endian wire form into a uint256 (big-endian API).
func (w Word) toInt() *uint256.Int {
	var be [WordBytes]byte
	for i := range WordBytes {
		be[WordBytes-1-i] = w[i]
	}
	return new(uint256.Int).SetBytes32(be[:])
}

func fromInt(x *uint256.Int) Word {
	be := x.Bytes32()
	var w Word
	for i := range WordBytes {
		w[i] = be[WordBytes-1-i]
	}
	return w
}

func mask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// Field extracts an unsigned field of at most 64 bits.
func (w Word) Field(lsb, width uint) uint64 {
	x := w.toInt()
	x.Rsh(x, lsb)
	return x.Uint64() & mask(width)
}

// WithField returns a copy of w with the given field replaced. Bits of v
// above width are discarded; use checked setters for user input.
func (w Word) WithField(lsb, width uint, v uint64) Word {
	x := w.toInt()
	m := new(uint256.Int).Lsh(uint256.NewInt(mask(width)), lsb)
	x.And(x, new(uint256.Int).Not(m))
	x.Or(x, new(uint256.Int).Lsh(uint256.NewInt(v&mask(width)), lsb))
	return fromInt(x)
}

func (w Word) setChecked(name string, lsb, width uint, v uint64) (Word, error) {
	if v > mask(width) {
		return w, errors.Wrapf(ErrFieldOverflow, "%s=%d exceeds %d bits", name, v, width)
	}
	return w.WithField(lsb, width, v), nil
}

// Signed field helpers for the 40-bit bypass payload.

// MinCoeff and MaxCoeff bound a signed 40-bit payload field.
const (
	MaxCoeff = int64(1)<<(CoeffBits-1) - 1
	MinCoeff = -int64(1) << (CoeffBits - 1)
)

func (w Word) signedField(lsb uint) int64 {
	raw := w.Field(lsb, CoeffBits)
	if raw&(uint64(1)<<(CoeffBits-1)) != 0 {
		return int64(raw) - int64(1)<<CoeffBits
	}
	return int64(raw)
}

func (w Word) withSigned(name string, lsb uint, v int64) (Word, error) {
	if v < MinCoeff || v > MaxCoeff {
		return w, errors.Wrapf(ErrFieldOverflow, "%s=%d exceeds signed %d bits", name, v, CoeffBits)
	}
	return w.WithField(lsb, CoeffBits, uint64(v)&mask(CoeffBits)), nil
}
