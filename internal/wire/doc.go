// Package wire implements the 256-bit hardware word shared by the compiler,
// the streaming assembler and the emulator.
//
// A word is 32 bytes on the wire, least significant byte first. Bit positions
// below are counted from bit 0 of byte 0.
//
//	bits   0..39   U0        (signed, bypass payload)
//	bits  40..79   U1        (signed)
//	bits  80..119  U2        (signed)
//	bits 120..159  U3        (signed)
//	bits 160..199  duration  (signed field, never negative)
//	bits 216..217  output-enable mask
//	bit  218       wait-for-trigger
//	bits 220..222  channel (board-local DMA mux)
//	bits 228..239  pulse-table address (ProgramPulseTable only)
//	bits 240..244  sub-record count
//	bits 245..247  programming mode
//	bits 248..252  spline shift
//	bits 253..255  modulation type
//
// Programming and run words reuse bits 0..215 for tightly packed sub-records,
// see PackGateTable, PackSequenceMap and PackRun.
//
// Field positions are part of the wire contract: the encoder and the decoder
// in this package are the only code that knows them.
package wire
