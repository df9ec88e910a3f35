package store

import (
	"context"
	"fmt"
)

// WriteTree records a newly opened tree.
// Idempotent: writing the same tree id twice is a no-op.
func (s *Store) WriteTree(ctx context.Context, t Tree) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trees (id, host_version, guest_version, schema_name, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		t.ID,
		t.HostVersion.String(),
		t.GuestVersion.String(),
		t.SchemaName,
		t.Seq,
	)
	if err != nil {
		return fmt.Errorf("write tree %s: %w", t.ID, err)
	}
	return nil
}

// WriteBatch records a batch and its outcome.
// Idempotent on the batch id.
func (s *Store) WriteBatch(ctx context.Context, b Batch) error {
	if b.Status == "" {
		return fmt.Errorf("write batch %s: status is required", b.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (
			id, tree_id, seq, encoding, payload, change_count,
			status, error_code, error, fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		b.ID,
		b.TreeID,
		b.Seq,
		string(b.Encoding),
		b.Payload,
		b.ChangeCount,
		string(b.Status),
		string(b.ErrorCode),
		b.Error,
		formatFingerprint(b.Fingerprint),
	)
	if err != nil {
		return fmt.Errorf("write batch %s: %w", b.ID, err)
	}
	return nil
}

// WriteEvent records an event sent to the guest. Event payloads are stored
// as JSON regardless of the tree's wire encoding.
func (s *Store) WriteEvent(ctx context.Context, e Event) error {
	payload, err := e.Event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (tree_id, seq, node_id, tag, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tree_id, seq) DO NOTHING
	`,
		e.TreeID,
		e.Seq,
		int64(e.Event.Id),
		int64(e.Event.Tag),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("write event %s/%d: %w", e.TreeID, e.Seq, err)
	}
	return nil
}
