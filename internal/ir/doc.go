// Package ir holds the circuit intermediate representation shared by the
// compiler, the streaming assembler and the emulator.
//
// This package imports nothing internal except wire. All other internal
// packages import ir, which keeps it the foundational layer.
//
// Key design constraints:
//   - IR values are immutable once built; transformations return new trees
//   - Gate identity is a content hash over RFC 8785 canonical JSON, never a
//     pointer or language-level hash
//   - No floats in anything that is hashed
package ir
