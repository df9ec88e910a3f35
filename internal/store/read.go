package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// ErrNotFound is returned when a tree does not exist in the journal.
var ErrNotFound = errors.New("not found")

// ReadTree returns the tree with the given id.
func (s *Store) ReadTree(ctx context.Context, id string) (Tree, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, host_version, guest_version, schema_name, seq
		FROM trees
		WHERE id = ?
	`, id)

	t, err := scanTree(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Tree{}, fmt.Errorf("tree %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Tree{}, fmt.Errorf("read tree %s: %w", id, err)
	}
	return t, nil
}

// ListTrees returns every tree in the order they were opened.
func (s *Store) ListTrees(ctx context.Context) ([]Tree, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, host_version, guest_version, schema_name, seq
		FROM trees
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query trees: %w", err)
	}
	defer rows.Close()

	trees := make([]Tree, 0)
	for rows.Next() {
		t, err := scanTree(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		trees = append(trees, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trees: %w", err)
	}
	return trees, nil
}

// ReadBatches returns the batches journaled for a tree in seq order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadBatches(ctx context.Context, treeID string) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tree_id, seq, encoding, payload, change_count,
		       status, error_code, error, fingerprint
		FROM batches
		WHERE tree_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("query batches for tree %s: %w", treeID, err)
	}
	defer rows.Close()

	batches := make([]Batch, 0)
	for rows.Next() {
		var (
			b                 Batch
			encoding, status  string
			errorCode, finger string
		)
		if err := rows.Scan(
			&b.ID,
			&b.TreeID,
			&b.Seq,
			&encoding,
			&b.Payload,
			&b.ChangeCount,
			&status,
			&errorCode,
			&b.Error,
			&finger,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.Encoding = protocol.Encoding(encoding)
		b.Status = BatchStatus(status)
		b.ErrorCode = protocol.ErrorCode(errorCode)
		if b.Fingerprint, err = parseFingerprint(finger); err != nil {
			return nil, fmt.Errorf("batch %s: %w", b.ID, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadEvents returns the events journaled for a tree in seq order.
func (s *Store) ReadEvents(ctx context.Context, treeID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tree_id, seq, payload
		FROM events
		WHERE tree_id = ?
		ORDER BY seq ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("query events for tree %s: %w", treeID, err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e       Event
			payload string
		)
		if err := rows.Scan(&e.TreeID, &e.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := e.Event.UnmarshalJSON([]byte(payload)); err != nil {
			return nil, fmt.Errorf("event %s/%d: %w", e.TreeID, e.Seq, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest seq used by a tree's batches and events,
// or the tree's own seq when nothing was journaled yet. Engines resuming a
// tree start their clock here.
func (s *Store) LastSeq(ctx context.Context, treeID string) (int64, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM trees WHERE id = ?
			UNION ALL SELECT seq FROM batches WHERE tree_id = ?
			UNION ALL SELECT seq FROM events WHERE tree_id = ?
		)
	`, treeID, treeID, treeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("last seq for tree %s: %w", treeID, err)
	}
	return n.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTree(row rowScanner) (Tree, error) {
	var (
		t                 Tree
		hostVer, guestVer string
	)
	if err := row.Scan(&t.ID, &hostVer, &guestVer, &t.SchemaName, &t.Seq); err != nil {
		return Tree{}, err
	}
	var err error
	if t.HostVersion, err = protocol.ParseVersion(hostVer); err != nil {
		return Tree{}, fmt.Errorf("host version: %w", err)
	}
	if t.GuestVersion, err = protocol.ParseVersion(guestVer); err != nil {
		return Tree{}, fmt.Errorf("guest version: %w", err)
	}
	return t, nil
}
