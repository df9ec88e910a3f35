package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/store"
)

// Journal records trees, batches and events. Implemented by *store.Store.
type Journal interface {
	WriteTree(ctx context.Context, t store.Tree) error
	WriteBatch(ctx context.Context, b store.Batch) error
	WriteEvent(ctx context.Context, e store.Event) error
}

// Engine hosts any number of trees, each applied by its own worker.
//
// Thread-safety model:
//   - OpenTree, CloseTree, Submit, Do: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Batches submitted for one tree are applied in submission order and never
// interleave with each other or with Do functions for that tree. Trees share
// nothing and run concurrently.
type Engine struct {
	journal Journal
	ids     IDGenerator
	logger  *slog.Logger

	mu      sync.Mutex
	trees   map[string]*Tree
	group   *errgroup.Group
	runCtx  context.Context
	running bool
	stopped bool

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every tree, batch and event. Without a journal the
// engine keeps no history.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithIDGenerator sets the generator for tree and batch ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. Trees may be opened before Run is called; their
// batches queue until Run starts the workers.
func New(opts ...Option) *Engine {
	e := &Engine{
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		trees:  make(map[string]*Tree),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenTree registers a new tree and journals it.
func (e *Engine) OpenTree(ctx context.Context, cfg TreeConfig) (*Tree, error) {
	if cfg.ID == "" {
		cfg.ID = e.ids.Generate()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, newStoppedError(cfg.ID)
	}
	if _, ok := e.trees[cfg.ID]; ok {
		return nil, newDuplicateTreeError(cfg.ID)
	}

	t := newTree(e, cfg)
	seq := t.clock.Next()
	if e.journal != nil {
		err := e.journal.WriteTree(ctx, store.Tree{
			ID:           t.id,
			HostVersion:  cfg.HostVersion,
			GuestVersion: cfg.GuestVersion,
			SchemaName:   cfg.SchemaName,
			Seq:          seq,
		})
		if err != nil {
			return nil, newJournalError(t.id, "tree", err)
		}
	}

	e.trees[t.id] = t
	if e.running {
		e.startLocked(t)
	}

	e.logger.Info("tree opened",
		"tree", t.id,
		"host_version", cfg.HostVersion.String(),
		"guest_version", cfg.GuestVersion.String(),
	)
	return t, nil
}

// CloseTree stops accepting work for a tree. Jobs already queued are still
// processed.
func (e *Engine) CloseTree(id string) error {
	e.mu.Lock()
	t, ok := e.trees[id]
	if ok {
		delete(e.trees, id)
	}
	e.mu.Unlock()

	if !ok {
		return newUnknownTreeError(id)
	}
	t.queue.Close()
	e.logger.Info("tree closed", "tree", id)
	return nil
}

// TreeIDs returns the ids of open trees, sorted.
func (e *Engine) TreeIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.trees))
	for id := range e.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) tree(id string) (*Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trees[id]
	if !ok {
		if e.stopped {
			return nil, newStoppedError(id)
		}
		return nil, newUnknownTreeError(id)
	}
	return t, nil
}

// Submit queues an encoded change batch for a tree and waits for it to be
// applied. A batch the host refused is not an error here: see
// Result.Status and Result.Err. The returned error reports engine failures
// (tree not open, engine stopped, journal write failed, ctx done).
func (e *Engine) Submit(ctx context.Context, treeID string, enc protocol.Encoding, payload []byte) (Result, error) {
	t, err := e.tree(treeID)
	if err != nil {
		return Result{}, err
	}
	return t.wait(ctx, &job{
		ctx:      ctx,
		encoding: enc,
		payload:  payload,
		done:     make(chan jobResult, 1),
	})
}

// Do runs fn on the tree's worker, serialized with its batches. Use it to
// read the tree or raise widget events.
func (e *Engine) Do(ctx context.Context, treeID string, fn func(*Tree) error) error {
	t, err := e.tree(treeID)
	if err != nil {
		return err
	}
	_, err = t.wait(ctx, &job{
		ctx:  ctx,
		fn:   fn,
		done: make(chan jobResult, 1),
	})
	return err
}

// Run starts a worker for every open tree and for trees opened later.
// Blocks until ctx is cancelled or Stop is called.
//
// On Stop, workers finish the jobs already queued. On cancellation, queued
// jobs fail with a stopped error.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running || e.stopped {
		e.mu.Unlock()
		return errors.New("engine: Run called twice")
	}
	g, gctx := errgroup.WithContext(ctx)
	e.group, e.runCtx, e.running = g, gctx, true
	for _, t := range e.trees {
		e.startLocked(t)
	}
	n := len(e.trees)
	e.mu.Unlock()

	e.logger.Info("engine starting", "trees", n)

	select {
	case <-gctx.Done():
		e.logger.Info("engine stopping: context cancelled")
	case <-e.stop:
		e.logger.Info("engine stopping: stop requested")
	}

	e.mu.Lock()
	e.stopped = true
	for _, t := range e.trees {
		t.queue.Close()
	}
	e.mu.Unlock()

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Stop shuts the engine down gracefully. Run returns once every worker
// has drained its queue.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// startLocked launches t's worker. Caller holds e.mu.
func (e *Engine) startLocked(t *Tree) {
	ctx := e.runCtx
	e.group.Go(func() error {
		return t.run(ctx)
	})
}
