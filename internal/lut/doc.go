// Package lut models the three chained lookup tables of a pulse generator
// channel: the gate table, the sequence map and the pulse table.
//
// A Store is built either by table assembly (AddPulse, MapAddress,
// DefineGate) or by replaying programming words (ProgramGateTable,
// ProgramSequenceMap, ProgramPulseTable). The two paths must agree: the
// programming words emitted by ProgrammingWords replay into an Equal store.
//
// Stores are owned by exactly one compile or replay session and are not
// safe for concurrent use.
package lut
