// Package store provides the SQLite-backed journal for host trees.
//
// The journal is append-only:
//   - Trees: one row per opened tree with its negotiated versions
//   - Batches: every change batch received for a tree, verbatim, with the
//     outcome of applying it and the tree fingerprint afterwards
//   - Events: every event the host sent back to the guest
//
// # Ordering
//
// Batches and events are stamped with a per-tree logical seq. Queries
// order by seq, never by wall-clock time, so replay sees the same order
// the engine applied.
//
// # Replay
//
// ReplayTree feeds the journaled payloads into a fresh host.Bridge and
// compares each recorded outcome and fingerprint with what the bridge
// produces now. It replays twice to check that applying is deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
