package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Outcome is the result of applying one batch payload to a bridge.
type Outcome struct {
	ChangeCount int
	Status      BatchStatus
	Err         error
	Fingerprint uint64
}

// ErrorCode returns the protocol error code of a failed outcome, or "".
func (o Outcome) ErrorCode() protocol.ErrorCode {
	return protocol.CodeOf(o.Err)
}

// ErrorMessage returns the error text of a failed outcome, or "".
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Apply decodes payload and applies it to b. An identity error resets the
// bridge after the failing change. Engines journal exactly this outcome, and
// ReplayTree recomputes it, so both must go through here.
//
// The returned error is non-nil only when the fingerprint cannot be taken;
// batch failures are reported in Outcome.Err.
func Apply(b *host.Bridge, enc protocol.Encoding, payload []byte) (Outcome, error) {
	var out Outcome
	changes, err := enc.DecodeChanges(payload)
	if err != nil {
		out.Err = err
	} else {
		out.ChangeCount = len(changes)
		out.Err = b.SendChanges(changes)
	}

	out.Status = StatusOf(out.Err)
	if out.Status == StatusReset {
		b.Reset()
	}

	fp, err := b.Fingerprint()
	if err != nil {
		return out, fmt.Errorf("fingerprint: %w", err)
	}
	out.Fingerprint = fp
	return out, nil
}

// BridgeFactory returns a fresh bridge for replaying tree t.
type BridgeFactory func(t Tree) (*host.Bridge, error)

// Divergence is a journaled batch whose replay outcome differs from the
// recorded one.
type Divergence struct {
	BatchID  string
	Seq      int64
	Field    string
	Recorded string
	Replayed string
}

func (d Divergence) String() string {
	return fmt.Sprintf("batch %s (seq %d): %s recorded %q, replayed %q",
		d.BatchID, d.Seq, d.Field, d.Recorded, d.Replayed)
}

// ReplayResult summarizes the replay of one tree.
type ReplayResult struct {
	TreeID string

	// Batches is the number of batches replayed.
	Batches int

	// Divergences lists every batch whose replayed status, error code or
	// fingerprint differs from the journal.
	Divergences []Divergence

	// Fingerprint is the tree fingerprint after the last batch.
	Fingerprint uint64

	// Deterministic is true when a second replay ended with the same
	// fingerprint as the first.
	Deterministic bool
}

// OK reports whether the replay matched the journal and was deterministic.
func (r *ReplayResult) OK() bool {
	return len(r.Divergences) == 0 && r.Deterministic
}

// ReplayTree re-applies the journaled batches of a tree to a fresh bridge,
// comparing each outcome with the recorded one.
func (s *Store) ReplayTree(ctx context.Context, treeID string, newBridge BridgeFactory) (*ReplayResult, error) {
	tree, err := s.ReadTree(ctx, treeID)
	if err != nil {
		return nil, err
	}
	batches, err := s.ReadBatches(ctx, treeID)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{TreeID: treeID, Batches: len(batches)}

	first, divergences, err := replayOnce(ctx, tree, batches, newBridge)
	if err != nil {
		return nil, fmt.Errorf("replay tree %s: %w", treeID, err)
	}
	result.Divergences = divergences
	result.Fingerprint = first

	second, _, err := replayOnce(ctx, tree, batches, newBridge)
	if err != nil {
		return nil, fmt.Errorf("replay tree %s: %w", treeID, err)
	}
	result.Deterministic = first == second

	return result, nil
}

func replayOnce(ctx context.Context, tree Tree, batches []Batch, newBridge BridgeFactory) (uint64, []Divergence, error) {
	b, err := newBridge(tree)
	if err != nil {
		return 0, nil, fmt.Errorf("new bridge: %w", err)
	}

	fp, err := b.Fingerprint()
	if err != nil {
		return 0, nil, err
	}

	divergences := make([]Divergence, 0)
	for _, rec := range batches {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		out, err := Apply(b, rec.Encoding, rec.Payload)
		if err != nil {
			return 0, nil, fmt.Errorf("batch %s: %w", rec.ID, err)
		}
		fp = out.Fingerprint

		diverge := func(field, recorded, replayed string) {
			divergences = append(divergences, Divergence{
				BatchID:  rec.ID,
				Seq:      rec.Seq,
				Field:    field,
				Recorded: recorded,
				Replayed: replayed,
			})
		}
		if out.Status != rec.Status {
			diverge("status", string(rec.Status), string(out.Status))
		}
		if out.ErrorCode() != rec.ErrorCode {
			diverge("error_code", string(rec.ErrorCode), string(out.ErrorCode()))
		}
		if out.Fingerprint != rec.Fingerprint {
			diverge("fingerprint", formatFingerprint(rec.Fingerprint), formatFingerprint(out.Fingerprint))
		}
	}
	return fp, divergences, nil
}

// ReplayTrees replays every journaled tree, at most limit at a time.
// A limit of zero or less means no limit. Results are in ListTrees order.
func (s *Store) ReplayTrees(ctx context.Context, newBridge BridgeFactory, limit int) ([]*ReplayResult, error) {
	trees, err := s.ListTrees(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*ReplayResult, len(trees))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, t := range trees {
		i, t := i, t
		g.Go(func() error {
			r, err := s.ReplayTree(gctx, t.ID, newBridge)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
