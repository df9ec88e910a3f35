// Package harness runs conformance scenarios against a guest and a host
// bridge wired back to back.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: button-click
//	description: "Guest inserts a button; a host click reaches the guest"
//	schema: ../../../schema/testdata/sunspot
//	host_version: "0.12.0"
//	encoding: json
//	steps:
//	  - guest:
//	      - create: {widget: Button, as: go}
//	      - set: {node: go, property: text, value: "Go"}
//	      - insert: {node: go, index: 0}
//	    expect: {status: applied}
//	  - trigger: {node: go, event: onClick}
//	  - batch: '[{"type":"add","id":0,"tag":1,"childId":9,"index":1}]'
//	    expect: {status: reset, code: UNKNOWN_ID}
//	assertions:
//	  - type: node_count
//	    count: 0
//	  - type: replay
//
// # Steps
//
//   - guest: drives the guest bridge, then ships the pending batch to the
//     host through the scenario's encoding
//   - batch: sends a raw JSON change array straight to the host
//   - trigger: raises an event on a host widget, as a user would
//
// Every batch goes through store.Apply, so a scenario sees exactly what a
// hosted engine tree would: identity errors reset the host tree, and the
// batch is journaled with its status and fingerprint.
//
// # Assertion Types
//
//   - render: the host tree renders to Expect
//   - node_count: the host holds Count live nodes
//   - placeholder: Node is a placeholder for an unknown widget
//   - mismatch_count: the host mismatch handler fired Count times
//   - guest_events: the guest received Count events
//   - property: host widget Node has Property set to Value
//   - replay: the journal replays to the same outcomes, deterministically
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory journal, a testutil.SeqClock for
// sequence numbers and batch ids derived from the scenario name, so
// repeated runs produce identical journals and golden snapshots.
package harness
