// Package engine hosts Redwood trees behind a single-writer worker per tree.
//
// ARCHITECTURE:
//
// Each tree owns a host.Bridge, a FIFO job queue and a logical clock. A
// worker goroutine per tree drains the queue:
//  1. Transports call Submit with an encoded batch from the guest
//  2. The worker decodes and applies it with store.Apply
//  3. The outcome (applied, rejected, reset) and the tree fingerprint are
//     journaled under the next seq
//  4. Submit returns the Result to the caller
//
// Do runs arbitrary functions on the same worker, so reading the tree or
// raising widget events never races with a batch. Events raised by widgets
// are journaled and forwarded to the tree's EventSink.
//
// Workers for independent trees run concurrently in an errgroup and share
// no state. Within a tree there is no concurrency at all: batches apply in
// submission order, one at a time.
//
// An identity error (duplicate or unknown id) means host and guest no
// longer agree on the tree, so the worker resets the bridge to an empty
// root after journaling the batch as "reset".
package engine
