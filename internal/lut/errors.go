package lut

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/wire"
)

// InconsistencyKind categorizes table inconsistencies.
type InconsistencyKind string

const (
	// KindUndefinedGate: a gate id has no gate-table entry.
	KindUndefinedGate InconsistencyKind = "UNDEFINED_GATE"

	// KindUndefinedAddress: a sequence-map address has no entry.
	KindUndefinedAddress InconsistencyKind = "UNDEFINED_ADDRESS"

	// KindUndefinedPulse: a pulse-table index has no stored word.
	KindUndefinedPulse InconsistencyKind = "UNDEFINED_PULSE"

	// KindInvalidBounds: a gate's start address lies after its stop address.
	KindInvalidBounds InconsistencyKind = "INVALID_BOUNDS"

	// KindAddressOverflow: a table ran out of address space.
	KindAddressOverflow InconsistencyKind = "ADDRESS_OVERFLOW"

	// KindRecordCount: a word's count field exceeds its record capacity.
	KindRecordCount InconsistencyKind = "RECORD_COUNT"
)

// InconsistencyError reports a lookup that has no table entry or a word the
// tables cannot take. It always indicates a programming or sequencing bug
// upstream and is never defaulted.
type InconsistencyError struct {
	Kind    InconsistencyKind
	Channel int
	Key     int // gate id, address, pulse index or record count, depending on Kind
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s: key %d (channel=%d)", e.Kind, e.Key, e.Channel)
}

// IsInconsistency reports whether err is an InconsistencyError of the given
// kind. Uses errors.As to handle wrapped errors.
func IsInconsistency(err error, kind InconsistencyKind) bool {
	var ie *InconsistencyError
	if errors.As(err, &ie) {
		return ie.Kind == kind
	}
	return false
}

// RecordCountError converts a wire.ErrRecordCount decode failure of w into
// an InconsistencyError keyed by the offending count. Other errors are
// returned unchanged.
func RecordCountError(ch int, w wire.Word, err error) error {
	if !errors.Is(err, wire.ErrRecordCount) {
		return err
	}
	return &InconsistencyError{Kind: KindRecordCount, Channel: ch, Key: int(w.Header().Count)}
}
