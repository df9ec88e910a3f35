package host

import (
	"fmt"
	"log/slog"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Bridge applies change batches to a live tree of widgets.
type Bridge struct {
	root     Container
	factory  WidgetFactory
	mismatch MismatchHandler
	logger   *slog.Logger
	sink     EventSink

	nodes map[protocol.Id]*node
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMismatchHandler sets the policy for unknown tags. The default fails
// the batch on every mismatch.
func WithMismatchHandler(h MismatchHandler) BridgeOption {
	return func(b *Bridge) { b.mismatch = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

// WithEventSink sets where events raised by live widgets are forwarded.
func WithEventSink(s EventSink) BridgeOption {
	return func(b *Bridge) { b.sink = s }
}

// NewBridge creates a bridge whose root children are mirrored into root.
func NewBridge(root Container, factory WidgetFactory, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		root:     root,
		factory:  factory,
		mismatch: ThrowingMismatchHandler{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.nodes = map[protocol.Id]*node{protocol.RootId: b.newRoot()}
	return b
}

func (b *Bridge) newRoot() *node {
	return &node{
		id:        protocol.RootId,
		widgetTag: protocol.UnknownWidgetTag,
		slots: map[protocol.ChildrenTag]*children{
			protocol.RootChildrenTag: newChildren(protocol.RootChildrenTag, b.root, true),
		},
	}
}

// SendChanges applies one batch.
//
// The whole batch is checked for format first, including children indices,
// removed ids and parent links as they stand after the changes before them.
// A malformed change rejects the batch before anything is applied. Changes
// are then applied in order. An identity error stops the batch at the
// offending change and is returned; changes before it remain applied.
// Unknown tags are reported to the mismatch handler, whose error, if any,
// also stops the batch.
func (b *Bridge) SendChanges(changes []protocol.Change) error {
	if err := validateBatch(changes); err != nil {
		b.logger.Error("batch rejected", "changes", len(changes), "error", err)
		return err
	}
	if err := newDryRun(b).check(changes); err != nil {
		b.logger.Error("batch rejected",
			"changes", len(changes),
			"kind", protocol.ChangeKind(err.Change),
			"id", uint32(err.Id),
			"error", err)
		return err
	}
	for i, c := range changes {
		if err := b.apply(c); err != nil {
			b.logger.Error("change failed",
				"index", i,
				"kind", protocol.ChangeKind(c),
				"id", uint32(c.ChangeId()),
				"error", err)
			return err
		}
	}
	return nil
}

// validateBatch rejects malformed changes without touching the tree.
func validateBatch(changes []protocol.Change) error {
	for _, c := range changes {
		switch ch := c.(type) {
		case protocol.Add:
			if ch.Index < 0 {
				return &protocol.Error{Code: protocol.ErrCodeFormat, Message: fmt.Sprintf("%s has a negative index", ch), Id: ch.Id, Change: ch}
			}
		case protocol.Move:
			if ch.FromIndex < 0 || ch.ToIndex < 0 || ch.Count < 0 {
				return &protocol.Error{Code: protocol.ErrCodeFormat, Message: fmt.Sprintf("%s has a negative index or count", ch), Id: ch.Id, Change: ch}
			}
		case protocol.Remove:
			if ch.Index < 0 || ch.Count < 0 {
				return &protocol.Error{Code: protocol.ErrCodeFormat, Message: fmt.Sprintf("%s has a negative index or count", ch), Id: ch.Id, Change: ch}
			}
			if ch.Count != len(ch.RemovedIds) {
				return &protocol.Error{
					Code:    protocol.ErrCodeFormat,
					Message: fmt.Sprintf("Remove count %d does not match removedIds size %d", ch.Count, len(ch.RemovedIds)),
					Id:      ch.Id,
					Change:  ch,
				}
			}
		}
	}
	return nil
}

func (b *Bridge) apply(c protocol.Change) error {
	switch ch := c.(type) {
	case protocol.Create:
		return b.create(ch)
	case protocol.PropertyChange:
		return b.setProperty(ch)
	case protocol.ModifierChange:
		return b.setModifiers(ch)
	case protocol.Add:
		return b.add(ch)
	case protocol.Move:
		return b.move(ch)
	case protocol.Remove:
		return b.remove(ch)
	default:
		return protocol.NewFormatError("unknown change type %T", c)
	}
}

func (b *Bridge) node(id protocol.Id, c protocol.Change) (*node, error) {
	n, ok := b.nodes[id]
	if !ok {
		return nil, protocol.NewUnknownIdError(id, c)
	}
	return n, nil
}

func (b *Bridge) create(ch protocol.Create) error {
	if _, ok := b.nodes[ch.Id]; ok {
		return protocol.NewDuplicateIdError(ch)
	}
	w, ok := b.factory.Create(ch.Tag)
	if !ok {
		if err := b.mismatch.OnUnknownWidget(ch.Tag); err != nil {
			return err
		}
		b.nodes[ch.Id] = &node{id: ch.Id, widgetTag: ch.Tag, placeholder: true}
		return nil
	}
	if src, ok := w.(EventSource); ok {
		src.BindEvents(ch.Id, b)
	}
	b.nodes[ch.Id] = &node{id: ch.Id, widgetTag: ch.Tag, widget: w}
	return nil
}

func (b *Bridge) setProperty(ch protocol.PropertyChange) error {
	n, err := b.node(ch.Id, ch)
	if err != nil {
		return err
	}
	if n.placeholder {
		return b.mismatch.OnUnknownWidget(n.widgetTag)
	}
	if n.widget == nil || !n.widget.SetProperty(ch.Tag, ch.Value) {
		return b.mismatch.OnUnknownProperty(n.widgetTag, ch.Tag)
	}
	if protocol.IsNull(ch.Value) {
		delete(n.props, ch.Tag)
		return nil
	}
	if n.props == nil {
		n.props = make(map[protocol.PropertyTag]protocol.Value)
	}
	n.props[ch.Tag] = ch.Value
	return nil
}

func (b *Bridge) setModifiers(ch protocol.ModifierChange) error {
	n, err := b.node(ch.Id, ch)
	if err != nil {
		return err
	}
	if n.placeholder {
		return b.mismatch.OnUnknownWidget(n.widgetTag)
	}
	if n.widget == nil {
		return rootModifierError(ch)
	}

	elements := make([]protocol.ModifierElement, 0, len(ch.Elements))
	for _, e := range ch.Elements {
		if !b.factory.KnownModifier(e.Tag) {
			if err := b.mismatch.OnUnknownModifier(e.Tag); err != nil {
				return err
			}
			continue
		}
		elements = append(elements, e)
	}
	n.widget.SetModifiers(elements)
	n.modifiers = elements

	// A node that is not attached yet is laid out when it is added.
	if n.attached {
		slot := b.nodes[n.parent].slots[n.parentTag]
		if slot.container != nil {
			slot.container.OnModifierUpdated(slot.widgetIndex(n.index), n.widget)
		}
	}
	return nil
}

// slot returns the children slot tag of n, creating it on first use. Slots
// the widget does not know are still tracked so that ids stay consistent,
// but nothing is forwarded for them and every change is reported.
func (b *Bridge) slot(n *node, tag protocol.ChildrenTag) (*children, error) {
	if n.placeholder {
		if err := b.mismatch.OnUnknownWidget(n.widgetTag); err != nil {
			return nil, err
		}
	}
	s, ok := n.slots[tag]
	if !ok {
		var container Container
		known := n.placeholder
		if n.widget != nil {
			container, known = n.widget.Children(tag)
		}
		s = newChildren(tag, container, known)
	}
	if !s.known {
		if err := b.mismatch.OnUnknownChildren(n.widgetTag, tag); err != nil {
			return nil, err
		}
	}
	if !ok {
		if n.slots == nil {
			n.slots = make(map[protocol.ChildrenTag]*children)
		}
		n.slots[tag] = s
	}
	return s, nil
}

func (b *Bridge) add(ch protocol.Add) error {
	parent, err := b.node(ch.Id, ch)
	if err != nil {
		return err
	}
	child, err := b.node(ch.ChildId, ch)
	if err != nil {
		return err
	}
	if child.id == protocol.RootId || child.attached {
		return alreadyParentedError(ch)
	}
	s, err := b.slot(parent, ch.Tag)
	if err != nil {
		return err
	}
	if child.placeholder {
		if err := b.mismatch.OnUnknownWidget(child.widgetTag); err != nil {
			return err
		}
	}
	if ch.Index > s.len() {
		return protocol.NewIndexError(ch, s.len())
	}
	s.insert(ch.Index, child)
	child.attached = true
	child.parent = parent.id
	child.parentTag = ch.Tag
	return nil
}

func (b *Bridge) move(ch protocol.Move) error {
	parent, err := b.node(ch.Id, ch)
	if err != nil {
		return err
	}
	s, err := b.slot(parent, ch.Tag)
	if err != nil {
		return err
	}
	if !protocol.ValidMove(s.len(), ch.FromIndex, ch.ToIndex, ch.Count) {
		return protocol.NewIndexError(ch, s.len())
	}
	s.move(ch.FromIndex, ch.ToIndex, ch.Count)
	return nil
}

func (b *Bridge) remove(ch protocol.Remove) error {
	parent, err := b.node(ch.Id, ch)
	if err != nil {
		return err
	}
	s, err := b.slot(parent, ch.Tag)
	if err != nil {
		return err
	}
	if !inRange(s.len(), ch.Index, ch.Count) {
		return protocol.NewIndexError(ch, s.len())
	}
	for i, n := range s.nodes[ch.Index : ch.Index+ch.Count] {
		if n.id != ch.RemovedIds[i] {
			return removedIdError(ch, i, n.id)
		}
	}
	for _, n := range s.remove(ch.Index, ch.Count) {
		b.discard(n)
	}
	return nil
}

// discard drops n and its whole subtree from the arena and detaches their
// containers, deepest first.
func (b *Bridge) discard(n *node) {
	for _, tag := range n.slotTags() {
		s := n.slots[tag]
		for _, child := range s.nodes {
			b.discard(child)
		}
		s.nodes = nil
		s.placeholders = 0
		if s.container != nil {
			s.container.Detach()
		}
	}
	n.attached = false
	delete(b.nodes, n.id)
}

// Reset removes every node and empties the root container. The bridge can
// then apply a fresh tree from id 1.
func (b *Bridge) Reset() {
	root := b.nodes[protocol.RootId]
	s := root.slots[protocol.RootChildrenTag]
	if n := s.len(); n > 0 {
		for _, child := range s.remove(0, n) {
			b.discard(child)
		}
	}
	b.nodes = map[protocol.Id]*node{protocol.RootId: b.newRoot()}
	b.logger.Info("tree reset")
}

// SendEvent forwards an event raised by a widget. Events from nodes that
// are no longer live are dropped.
func (b *Bridge) SendEvent(e protocol.Event) error {
	n, ok := b.nodes[e.Id]
	if !ok || n.widget == nil {
		b.logger.Debug("dropping event for dead node", "id", uint32(e.Id), "event_tag", int32(e.Tag))
		return nil
	}
	if b.sink == nil {
		return nil
	}
	return b.sink.SendEvent(e)
}

// NodeCount returns the number of live nodes, placeholders included, not
// counting the root.
func (b *Bridge) NodeCount() int {
	return len(b.nodes) - 1
}

// Has reports whether id is live or a placeholder.
func (b *Bridge) Has(id protocol.Id) bool {
	_, ok := b.nodes[id]
	return ok
}

// IsPlaceholder reports whether id was created with an unknown widget tag.
func (b *Bridge) IsPlaceholder(id protocol.Id) bool {
	n, ok := b.nodes[id]
	return ok && n.placeholder
}

// Widget returns the widget for id.
func (b *Bridge) Widget(id protocol.Id) (Widget, bool) {
	n, ok := b.nodes[id]
	if !ok || n.widget == nil {
		return nil, false
	}
	return n.widget, true
}

// WidgetTag returns the widget tag id was created with.
func (b *Bridge) WidgetTag(id protocol.Id) (protocol.WidgetTag, bool) {
	n, ok := b.nodes[id]
	if !ok {
		return 0, false
	}
	return n.widgetTag, true
}

// ChildIds returns the ids in slot tag of id, in order.
func (b *Bridge) ChildIds(id protocol.Id, tag protocol.ChildrenTag) []protocol.Id {
	n, ok := b.nodes[id]
	if !ok {
		return nil
	}
	s, ok := n.slots[tag]
	if !ok {
		return nil
	}
	ids := make([]protocol.Id, len(s.nodes))
	for i, child := range s.nodes {
		ids[i] = child.id
	}
	return ids
}

// VerifyIndices checks every slot in the tree: each record's cached index
// matches its position and its parent link points back at the slot.
func (b *Bridge) VerifyIndices() error {
	for _, n := range b.nodes {
		for tag, s := range n.slots {
			if err := s.verifyIndices(); err != nil {
				return err
			}
			for _, child := range s.nodes {
				if !child.attached || child.parent != n.id || child.parentTag != tag {
					return fmt.Errorf("%s in slot %d of %s has parent link %d/%d", child, tag, n, child.parent, child.parentTag)
				}
				if _, ok := b.nodes[child.id]; !ok {
					return fmt.Errorf("%s in slot %d of %s is not in the arena", child, tag, n)
				}
			}
		}
	}
	return nil
}
