// Package guest implements the encoder side of the tree-sync protocol.
//
// A ProtocolState hands out node ids and buffers the changes produced by
// the composition runtime until TakeChanges drains them as one batch. Widget
// and WidgetChildren mirror the guest's tree so that removals can be
// expanded for older hosts, and Bridge ties the pieces together and routes
// incoming events back to widgets.
//
// Nothing in this package locks. All calls for one tree must come from a
// single goroutine.
package guest
