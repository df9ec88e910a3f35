// Package host implements the applier side of the tree-sync protocol.
//
// A Bridge mirrors the guest's tree as an arena of nodes keyed by id. Each
// batch passed to SendChanges is validated for format as a whole, then
// applied in order: widgets are created through a WidgetFactory, property
// and modifier changes are forwarded to them, and children changes are
// mirrored into each node's slots before being forwarded to the widget's
// Container.
//
// Tags the factory does not recognize are reported to a MismatchHandler.
// The default handler fails the batch; LoggingMismatchHandler drops the
// offending change and lets the rest of the batch apply.
//
// A Bridge is not safe for concurrent use. Apply all batches for one tree
// from a single goroutine, one batch at a time.
package host
