// Package harness runs end-to-end compiler scenarios.
//
// A scenario names a circuit, its pulse definitions and the system it is
// compiled for, then asserts on the compiled program, its bytecode and the
// waveforms the emulator decodes from it.
//
// # Scenario Format
//
//	name: bell_pair
//	description: "What this scenario validates"
//	circuit: ../circuits/bell.yaml
//	pulses: ../pulses.cue
//	channels: 2
//	global_delay: -2.5e-8
//	overrides: { angle: 0.25 }
//	assertions:
//	  - type: unique_gates
//	    channel: 0
//	    count: 4
//	  - type: sequence
//	    channel: 0
//	    ids: [1, 2, 0, 0, 0, 3]
//	  - type: word_count
//	    block: programming
//	    board: 0
//	    count: 13
//	  - type: record
//	    channel: 1
//	    mod: z0
//	    segments: 3
//	    cycles: 240
//	  - type: compile_error
//	    code: UNKNOWN_GATE
//
// Paths are relative to the scenario file.
//
// # Execution
//
// Run compiles the circuit, archives the bytecode in an in-memory store and
// replays it through the emulator, one decoder per board. Scenarios are
// deterministic: archive ids come from a fixed generator and every hash is
// a content hash.
package harness
