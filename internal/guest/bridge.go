package guest

import (
	"log/slog"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// ChangesSink receives each drained batch.
type ChangesSink interface {
	SendChanges(changes []protocol.Change) error
}

// ChangesSinkFunc adapts a function to ChangesSink.
type ChangesSinkFunc func(changes []protocol.Change) error

func (f ChangesSinkFunc) SendChanges(changes []protocol.Change) error { return f(changes) }

// Bridge connects a guest tree to a host. It owns the encoder state and the
// root children slot, creates widgets, and routes host events to them.
type Bridge struct {
	state    *ProtocolState
	root     *WidgetChildren
	mismatch MismatchHandler
	sink     ChangesSink
	logger   *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMismatchHandler sets the policy for events naming unknown nodes or
// tags. The default fails on every mismatch.
func WithMismatchHandler(h MismatchHandler) BridgeOption {
	return func(b *Bridge) { b.mismatch = h }
}

// WithChangesSink sets where EmitChanges delivers batches.
func WithChangesSink(s ChangesSink) BridgeOption {
	return func(b *Bridge) { b.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

// NewBridge creates a guest bridge for a host running hostVersion.
func NewBridge(hostVersion protocol.RedwoodVersion, opts ...BridgeOption) *Bridge {
	state := NewProtocolState(hostVersion)
	b := &Bridge{
		state:    state,
		root:     newWidgetChildren(protocol.RootId, protocol.RootChildrenTag, state),
		mismatch: ThrowingMismatchHandler{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the underlying encoder state.
func (b *Bridge) State() *ProtocolState { return b.state }

// Root returns the root children slot.
func (b *Bridge) Root() *WidgetChildren { return b.root }

// NewWidget allocates an id and records the Create. The widget is not part
// of the tree until it is inserted into a children slot.
func (b *Bridge) NewWidget(tag protocol.WidgetTag) *Widget {
	id := b.state.NextId()
	b.state.AppendCreate(id, tag)
	return &Widget{id: id, tag: tag, state: b.state, mismatch: b.mismatch}
}

// SendEvent routes an event from the host to its widget.
func (b *Bridge) SendEvent(e protocol.Event) error {
	w, ok := b.state.GetWidget(e.Id)
	if !ok {
		return b.mismatch.OnUnknownEventNode(e.Id, e.Tag)
	}
	return w.SendEvent(e)
}

// TakeChanges drains the pending batch.
func (b *Bridge) TakeChanges() ([]protocol.Change, bool) {
	return b.state.TakeChanges()
}

// EmitChanges drains the pending batch into the sink. It is a no-op when
// nothing is pending or no sink is configured.
func (b *Bridge) EmitChanges() error {
	if b.sink == nil {
		return nil
	}
	changes, ok := b.state.TakeChanges()
	if !ok {
		return nil
	}
	b.logger.Debug("emitting changes", "count", len(changes))
	return b.sink.SendChanges(changes)
}
