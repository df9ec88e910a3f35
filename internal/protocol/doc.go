// Package protocol defines the wire vocabulary shared by the guest encoder
// and the host applier.
//
// This package contains types and codecs only. The guest and host packages
// import protocol; protocol imports nothing internal.
//
// Key constraints:
//   - Id 0 is the root and is never created or removed by a Change
//   - Tags are opaque; the protocol dispatches on them and nothing more
//   - Change is a closed set; the marker method keeps it sealed
//   - JSON field names are camelCase to match existing guests
package protocol
