package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// CompileErrorCode categorizes compile errors.
type CompileErrorCode string

const (
	// ErrCodeUnknownGate: the gate provider has no handler for a gate name.
	ErrCodeUnknownGate CompileErrorCode = "UNKNOWN_GATE"

	// ErrCodeBadArguments: a gate received the wrong number or kind of arguments.
	ErrCodeBadArguments CompileErrorCode = "BAD_ARGUMENTS"

	// ErrCodeMissingInitGate: the initialization gate has no hash in the program.
	ErrCodeMissingInitGate CompileErrorCode = "MISSING_INIT_GATE"

	// ErrCodeMissingSource: no circuit text was supplied.
	ErrCodeMissingSource CompileErrorCode = "MISSING_SOURCE"

	// ErrCodeInvalidCircuit: the circuit source is malformed.
	ErrCodeInvalidCircuit CompileErrorCode = "INVALID_CIRCUIT"

	// ErrCodeTableOverflow: a lookup table exceeds its address space.
	ErrCodeTableOverflow CompileErrorCode = "TABLE_OVERFLOW"
)

// CompileError is a fatal error raised while turning a circuit into
// bytecode. A failed compile yields no bytecode.
type CompileError struct {
	Code    CompileErrorCode
	Gate    string // offending gate, if any
	Channel int    // offending channel, or -1
	Message string
}

func (e *CompileError) Error() string {
	switch {
	case e.Gate != "" && e.Channel >= 0:
		return fmt.Sprintf("%s: %s (gate=%s, channel=%d)", e.Code, e.Message, e.Gate, e.Channel)
	case e.Gate != "":
		return fmt.Sprintf("%s: %s (gate=%s)", e.Code, e.Message, e.Gate)
	case e.Channel >= 0:
		return fmt.Sprintf("%s: %s (channel=%d)", e.Code, e.Message, e.Channel)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCompileError builds a CompileError not tied to a channel.
func NewCompileError(code CompileErrorCode, gate, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Gate: gate, Channel: -1, Message: fmt.Sprintf(format, args...)}
}

// IsCompileError reports whether err is a CompileError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error, code CompileErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
