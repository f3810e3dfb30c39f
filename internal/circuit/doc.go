// Package circuit reads circuit sources and turns them into the ir tree.
//
// A circuit source is a YAML encoding of the gate-sequencing AST: register
// declarations, let constants, and a body of gates, parallel and sequential
// blocks, and loops. Parse produces an immutable AST, Resolve binds
// constants and registers, and Constructor.Build walks the result against a
// gate provider.
package circuit
