// Package emulator is a bit-exact software model of the pulse generator's
// data path. It replays programming words into a lookup-table store, expands
// run words through that store and turns every pulse into waveform samples
// in physical units.
//
// The emulator is the oracle for the compiler: any bytecode the compiler
// emits must decode here into the waveforms the circuit describes.
package emulator
