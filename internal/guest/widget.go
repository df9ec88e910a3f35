package guest

import (
	"slices"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// ProtocolWidget is a guest-side node whose mutations are recorded as
// changes.
type ProtocolWidget interface {
	Id() protocol.Id
	Tag() protocol.WidgetTag

	// SendEvent delivers an event from the host to this widget.
	SendEvent(e protocol.Event) error

	// DepthFirstWalk visits every children slot beneath the widget,
	// descendants before their parents.
	DepthFirstWalk(visit func(parent ProtocolWidget, tag protocol.ChildrenTag, children *WidgetChildren))
}

// EventHandler receives the arguments of an event.
type EventHandler func(args []protocol.Value) error

// Widget is a schema-agnostic ProtocolWidget. Property and modifier setters
// append changes to the owning state; children slots are created on first
// use.
type Widget struct {
	id       protocol.Id
	tag      protocol.WidgetTag
	state    *ProtocolState
	mismatch MismatchHandler

	slotTags []protocol.ChildrenTag
	slots    map[protocol.ChildrenTag]*WidgetChildren
	handlers map[protocol.EventTag]EventHandler
}

func (w *Widget) Id() protocol.Id          { return w.id }
func (w *Widget) Tag() protocol.WidgetTag { return w.tag }

// SetProperty records a property value.
func (w *Widget) SetProperty(tag protocol.PropertyTag, value protocol.Value) {
	w.state.AppendPropertyChange(w.id, w.tag, tag, value)
}

func (w *Widget) SetBool(tag protocol.PropertyTag, value bool) {
	w.state.AppendPropertyChangeBool(w.id, w.tag, tag, value)
}

func (w *Widget) SetUint(tag protocol.PropertyTag, value uint32) {
	w.state.AppendPropertyChangeUint(w.id, w.tag, tag, value)
}

// SetModifiers replaces the widget's modifier list.
func (w *Widget) SetModifiers(elements []protocol.ModifierElement) {
	w.state.AppendModifierChange(w.id, elements)
}

// On installs the handler for an event tag, replacing any previous one.
// A nil handler removes it.
func (w *Widget) On(tag protocol.EventTag, h EventHandler) {
	if h == nil {
		delete(w.handlers, tag)
		return
	}
	if w.handlers == nil {
		w.handlers = make(map[protocol.EventTag]EventHandler)
	}
	w.handlers[tag] = h
}

// SendEvent runs the handler for e.Tag, or reports the tag as unknown.
func (w *Widget) SendEvent(e protocol.Event) error {
	h, ok := w.handlers[e.Tag]
	if !ok {
		return w.mismatch.OnUnknownEvent(w.tag, e.Tag)
	}
	return h(e.Args)
}

// Children returns the slot for tag, creating it on first use.
func (w *Widget) Children(tag protocol.ChildrenTag) *WidgetChildren {
	if c, ok := w.slots[tag]; ok {
		return c
	}
	if w.slots == nil {
		w.slots = make(map[protocol.ChildrenTag]*WidgetChildren)
	}
	c := newWidgetChildren(w.id, tag, w.state)
	w.slots[tag] = c
	i, _ := slices.BinarySearch(w.slotTags, tag)
	w.slotTags = slices.Insert(w.slotTags, i, tag)
	return c
}

func (w *Widget) DepthFirstWalk(visit func(parent ProtocolWidget, tag protocol.ChildrenTag, children *WidgetChildren)) {
	for _, tag := range w.slotTags {
		w.slots[tag].depthFirstWalk(w, visit)
	}
}

// WidgetChildren is one ordered children slot of a guest widget, or the
// root slot.
type WidgetChildren struct {
	id      protocol.Id
	tag     protocol.ChildrenTag
	state   *ProtocolState
	widgets []ProtocolWidget
}

func newWidgetChildren(id protocol.Id, tag protocol.ChildrenTag, state *ProtocolState) *WidgetChildren {
	return &WidgetChildren{id: id, tag: tag, state: state}
}

// Widgets returns the current children in order.
func (c *WidgetChildren) Widgets() []ProtocolWidget {
	return slices.Clone(c.widgets)
}

func (c *WidgetChildren) Len() int { return len(c.widgets) }

// Insert places w at index, registers it with the state and records an Add.
func (c *WidgetChildren) Insert(index int, w ProtocolWidget) error {
	if index < 0 || index > len(c.widgets) {
		return protocol.NewIndexError(protocol.Add{Id: c.id, Tag: c.tag, ChildId: w.Id(), Index: index}, len(c.widgets))
	}
	if err := c.state.AddWidget(w); err != nil {
		return err
	}
	c.widgets = slices.Insert(c.widgets, index, w)
	c.state.AppendAdd(c.id, c.tag, w.Id(), index)
	return nil
}

// Move relocates count children and records a Move.
func (c *WidgetChildren) Move(fromIndex, toIndex, count int) error {
	if !protocol.ValidMove(len(c.widgets), fromIndex, toIndex, count) {
		return protocol.NewIndexError(protocol.Move{Id: c.id, Tag: c.tag, FromIndex: fromIndex, ToIndex: toIndex, Count: count}, len(c.widgets))
	}
	c.widgets = protocol.MoveRange(c.widgets, fromIndex, toIndex, count)
	c.state.AppendMove(c.id, c.tag, fromIndex, toIndex, count)
	return nil
}

// Remove detaches count children starting at index and unregisters them and
// all of their descendants. Hosts that do not cascade removals first get an
// itemized Remove for every descendant slot, deepest first.
func (c *WidgetChildren) Remove(index, count int) error {
	if index < 0 || count < 0 || index > len(c.widgets) || count > len(c.widgets)-index {
		return protocol.NewIndexError(protocol.Remove{Id: c.id, Tag: c.tag, Index: index, Count: count}, len(c.widgets))
	}
	synthesize := c.state.SynthesizeSubtreeRemoval()
	removedIds := make([]protocol.Id, 0, count)
	for _, w := range c.widgets[index : index+count] {
		removedIds = append(removedIds, w.Id())
		c.state.RemoveWidget(w.Id())
		w.DepthFirstWalk(func(parent ProtocolWidget, tag protocol.ChildrenTag, children *WidgetChildren) {
			childIds := make([]protocol.Id, 0, len(children.widgets))
			for _, child := range children.widgets {
				childIds = append(childIds, child.Id())
				c.state.RemoveWidget(child.Id())
			}
			if synthesize && len(childIds) > 0 {
				c.state.AppendRemove(parent.Id(), tag, 0, len(childIds), childIds)
			}
		})
	}
	c.state.AppendRemove(c.id, c.tag, index, count, removedIds)
	c.widgets = slices.Delete(c.widgets, index, index+count)
	return nil
}

func (c *WidgetChildren) depthFirstWalk(parent ProtocolWidget, visit func(ProtocolWidget, protocol.ChildrenTag, *WidgetChildren)) {
	for _, w := range c.widgets {
		w.DepthFirstWalk(visit)
	}
	visit(parent, c.tag, c)
}
