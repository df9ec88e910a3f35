package store

import (
	"fmt"
	"strconv"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Tree is a journaled tree: one guest connected to one host root.
type Tree struct {
	ID           string
	HostVersion  protocol.RedwoodVersion
	GuestVersion protocol.RedwoodVersion
	SchemaName   string
	Seq          int64
}

// BatchStatus is the outcome of applying a batch.
type BatchStatus string

const (
	// StatusApplied means every change in the batch was applied.
	StatusApplied BatchStatus = "applied"

	// StatusRejected means the batch failed without an identity error. A
	// format error leaves the tree untouched; a mismatch handler error keeps
	// the changes before it.
	StatusRejected BatchStatus = "rejected"

	// StatusReset means the batch hit an identity error and the tree was
	// cleared afterwards.
	StatusReset BatchStatus = "reset"
)

// StatusOf classifies the error returned by host.Bridge.SendChanges.
// Identity errors leave the host out of step with the guest, so the tree is
// reset; every other failure only rejects the batch.
func StatusOf(err error) BatchStatus {
	switch {
	case err == nil:
		return StatusApplied
	case protocol.IsIdentityError(err):
		return StatusReset
	default:
		return StatusRejected
	}
}

// Batch is a journaled change batch.
type Batch struct {
	ID          string
	TreeID      string
	Seq         int64
	Encoding    protocol.Encoding
	Payload     []byte
	ChangeCount int
	Status      BatchStatus
	ErrorCode   protocol.ErrorCode
	Error       string
	Fingerprint uint64
}

// Event is a journaled host-to-guest event.
type Event struct {
	TreeID string
	Seq    int64
	Event  protocol.Event
}

func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

func parseFingerprint(s string) (uint64, error) {
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return fp, nil
}
