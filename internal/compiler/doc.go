// Package compiler turns a circuit tree into hardware bytecode.
//
// Compilation has three stages:
//   - dedup: every channel's segment sequence in every gate slice is hashed;
//     equal sequences share one gate definition, weighted by how often the
//     circuit executes them
//   - ranking: gate ids are assigned by descending weight, ties broken by
//     first encounter
//   - assembly: gate definitions are binarized into the per-channel gate
//     table, sequence map and pulse table, and the executed id sequence
//     into run words
//
// A Program is the result. It produces the programming and sequence blocks
// for any channel mask, partial sequences starting at an initialization
// gate, and the bypass stream of the same circuit.
package compiler
