package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SnapshotChangeList is a change list that only builds a tree: it holds no
// Move or Remove. It is the fixture format for deterministic tests.
type SnapshotChangeList struct {
	changes []Change
}

// NewSnapshotChangeList validates changes. The error lists every offending
// entry.
func NewSnapshotChangeList(changes []Change) (SnapshotChangeList, error) {
	var bad []string
	for _, c := range changes {
		switch c.(type) {
		case Move, Remove:
			bad = append(bad, fmt.Sprint(c))
		}
	}
	if len(bad) > 0 {
		var b strings.Builder
		b.WriteString("Snapshot change list cannot contain move or remove operations\n\nFound:")
		for _, s := range bad {
			b.WriteString("\n - ")
			b.WriteString(s)
		}
		return SnapshotChangeList{}, &Error{Code: ErrCodeSnapshotMutation, Message: b.String()}
	}
	return SnapshotChangeList{changes: append([]Change(nil), changes...)}, nil
}

// Changes returns a copy of the snapshot's changes.
func (s SnapshotChangeList) Changes() []Change {
	return append([]Change(nil), s.changes...)
}

// Len returns the number of changes.
func (s SnapshotChangeList) Len() int { return len(s.changes) }

// MarshalJSON encodes the snapshot as a bare change array.
func (s SnapshotChangeList) MarshalJSON() ([]byte, error) {
	return MarshalChanges(s.changes)
}

// UnmarshalJSON decodes a change array and enforces the snapshot restriction.
func (s *SnapshotChangeList) UnmarshalJSON(data []byte) error {
	changes, err := UnmarshalChanges(data)
	if err != nil {
		return err
	}
	parsed, err := NewSnapshotChangeList(changes)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var _ json.Marshaler = SnapshotChangeList{}
