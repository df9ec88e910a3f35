package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/store"
)

// TreeConfig describes a tree to open.
type TreeConfig struct {
	// ID names the tree. Generated when empty.
	ID string

	// HostVersion and GuestVersion are the versions negotiated at connect.
	HostVersion  protocol.RedwoodVersion
	GuestVersion protocol.RedwoodVersion

	// SchemaName is journaled for diagnostics.
	SchemaName string

	// Root is the container for the tree's root children.
	Root host.Container

	// Factory creates the tree's widgets.
	Factory host.WidgetFactory

	// Mismatch handles schema mismatches. Default: host.ThrowingMismatchHandler.
	Mismatch host.MismatchHandler

	// Events receives widget events after they are journaled.
	Events host.EventSink
}

// Result is the outcome of one submitted batch.
type Result struct {
	BatchID     string
	Seq         int64
	ChangeCount int
	Status      store.BatchStatus

	// Err is the protocol error that rejected the batch, or nil.
	Err error

	// Fingerprint is the tree fingerprint after the batch.
	Fingerprint uint64
}

// Stats counts what a tree has processed.
type Stats struct {
	Batches  int
	Applied  int
	Rejected int
	Resets   int
	Events   int
}

// Tree is one hosted tree. Its bridge is only touched by the tree's worker,
// so use Engine.Do to read it while the engine runs.
type Tree struct {
	id      string
	cfg     TreeConfig
	engine  *Engine
	bridge  *host.Bridge
	clock   *Clock
	queue   *jobQueue
	logger  *slog.Logger
	journal Journal

	// ctx of the job being processed; events raised during it are
	// journaled under it.
	jobCtx context.Context

	mu    sync.Mutex
	stats Stats
}

func newTree(e *Engine, cfg TreeConfig) *Tree {
	t := &Tree{
		id:      cfg.ID,
		cfg:     cfg,
		engine:  e,
		clock:   NewClock(),
		queue:   newJobQueue(),
		logger:  e.logger.With("tree", cfg.ID),
		journal: e.journal,
		jobCtx:  context.Background(),
	}
	mismatch := cfg.Mismatch
	if mismatch == nil {
		mismatch = host.ThrowingMismatchHandler{}
	}
	t.bridge = host.NewBridge(cfg.Root, cfg.Factory,
		host.WithMismatchHandler(mismatch),
		host.WithLogger(t.logger),
		host.WithEventSink(host.EventSinkFunc(t.sendEvent)),
	)
	return t
}

// ID returns the tree id.
func (t *Tree) ID() string { return t.id }

// Bridge returns the tree's host bridge.
func (t *Tree) Bridge() *host.Bridge { return t.bridge }

// Root returns the tree's root container.
func (t *Tree) Root() host.Container { return t.cfg.Root }

// Seq returns the last seq the tree used.
func (t *Tree) Seq() int64 { return t.clock.Current() }

// Stats returns a snapshot of the tree's counters.
func (t *Tree) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tree) wait(ctx context.Context, j *job) (Result, error) {
	if !t.queue.Enqueue(j) {
		return Result{}, newStoppedError(t.id)
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-j.done:
		return r.result, r.err
	}
}

// run is the tree's single-writer loop.
func (t *Tree) run(ctx context.Context) error {
	t.logger.Debug("tree worker starting")
	for {
		if j, ok := t.queue.TryDequeue(); ok {
			t.process(j)
			continue
		}

		select {
		case <-ctx.Done():
			t.queue.Close()
			for {
				j, ok := t.queue.TryDequeue()
				if !ok {
					break
				}
				j.done <- jobResult{err: newStoppedError(t.id)}
			}
			t.logger.Debug("tree worker stopping: context cancelled")
			return nil

		case <-t.queue.Wait():
			if t.queue.Drained() {
				t.logger.Debug("tree worker stopping: queue closed")
				return nil
			}
		}
	}
}

func (t *Tree) process(j *job) {
	t.jobCtx = j.ctx
	defer func() { t.jobCtx = context.Background() }()

	if j.fn != nil {
		j.done <- jobResult{err: j.fn(t)}
		return
	}
	r, err := t.applyBatch(j.ctx, j.encoding, j.payload)
	j.done <- jobResult{result: r, err: err}
}

func (t *Tree) applyBatch(ctx context.Context, enc protocol.Encoding, payload []byte) (Result, error) {
	r := Result{
		BatchID: t.engine.ids.Generate(),
		Seq:     t.clock.Next(),
	}

	out, err := store.Apply(t.bridge, enc, payload)
	if err != nil {
		return r, fmt.Errorf("apply batch %s: %w", r.BatchID, err)
	}
	r.ChangeCount = out.ChangeCount
	r.Status = out.Status
	r.Err = out.Err
	r.Fingerprint = out.Fingerprint

	t.mu.Lock()
	t.stats.Batches++
	switch r.Status {
	case store.StatusApplied:
		t.stats.Applied++
	case store.StatusRejected:
		t.stats.Rejected++
	case store.StatusReset:
		t.stats.Resets++
	}
	t.mu.Unlock()

	attrs := []any{
		"batch", r.BatchID,
		"seq", r.Seq,
		"changes", r.ChangeCount,
		"status", string(r.Status),
	}
	switch r.Status {
	case store.StatusApplied:
		t.logger.Debug("batch applied", attrs...)
	case store.StatusRejected:
		t.logger.Warn("batch rejected", append(attrs, "code", string(out.ErrorCode()), "error", out.Err)...)
	case store.StatusReset:
		t.logger.Error("batch broke tree identity; tree reset", append(attrs, "code", string(out.ErrorCode()), "error", out.Err)...)
	}

	if t.journal != nil {
		err := t.journal.WriteBatch(ctx, store.Batch{
			ID:          r.BatchID,
			TreeID:      t.id,
			Seq:         r.Seq,
			Encoding:    enc,
			Payload:     payload,
			ChangeCount: r.ChangeCount,
			Status:      r.Status,
			ErrorCode:   out.ErrorCode(),
			Error:       out.ErrorMessage(),
			Fingerprint: r.Fingerprint,
		})
		if err != nil {
			t.logger.Error("journal batch failed", "batch", r.BatchID, "error", err)
			return r, newJournalError(t.id, "batch", err)
		}
	}
	return r, nil
}

// sendEvent journals a widget event and forwards it to the tree's sink.
func (t *Tree) sendEvent(e protocol.Event) error {
	seq := t.clock.Next()

	t.mu.Lock()
	t.stats.Events++
	t.mu.Unlock()

	if t.journal != nil {
		if err := t.journal.WriteEvent(t.jobCtx, store.Event{TreeID: t.id, Seq: seq, Event: e}); err != nil {
			return newJournalError(t.id, "event", err)
		}
	}
	t.logger.Debug("event", "seq", seq, "id", uint32(e.Id), "tag", int32(e.Tag))

	if t.cfg.Events != nil {
		return t.cfg.Events.SendEvent(e)
	}
	return nil
}
