// Package store archives compiled programs in SQLite.
//
// A compilation row carries the program's content hash, channel count and
// circuit source; its bytecode lives in the words table, one row per word,
// keyed by board, block and position. Saving the same program twice is a
// no-op that returns the first archive id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Listing is ordered by seq, the insertion counter, so results do not
// depend on wall time.
package store
