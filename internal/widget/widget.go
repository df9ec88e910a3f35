// Package widget provides a schema-driven reference widget set for hosts.
//
// The widgets keep their properties, modifiers and children in memory and
// can be rendered as indented text. They back the CLI, the scenario harness
// and the websocket host.
package widget

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
	"github.com/cashapp/redwood-sub006/internal/schema"
)

// Factory creates widgets for every widget declared in a schema.
type Factory struct {
	schema *schema.Schema
	logger *slog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used to report property type mismatches.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a factory for s.
func NewFactory(s *schema.Schema, opts ...Option) *Factory {
	f := &Factory{schema: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schema returns the factory's schema.
func (f *Factory) Schema() *schema.Schema { return f.schema }

func (f *Factory) Create(tag protocol.WidgetTag) (host.Widget, bool) {
	def, ok := f.schema.Widget(tag)
	if !ok {
		return nil, false
	}
	return &Widget{
		def:    def,
		logger: f.logger,
		props:  make(map[protocol.PropertyTag]protocol.Value),
		slots:  make(map[protocol.ChildrenTag]*List),
	}, true
}

func (f *Factory) KnownModifier(tag protocol.ModifierTag) bool {
	_, ok := f.schema.Modifier(tag)
	return ok
}

// Widget is an in-memory widget described by a schema entry.
type Widget struct {
	def    *schema.Widget
	logger *slog.Logger

	id        protocol.Id
	sink      host.EventSink
	props     map[protocol.PropertyTag]protocol.Value
	modifiers []protocol.ModifierElement
	slots     map[protocol.ChildrenTag]*List
}

// Name returns the schema name of the widget.
func (w *Widget) Name() string { return w.def.Name }

// Id returns the id the widget was created under.
func (w *Widget) Id() protocol.Id { return w.id }

func (w *Widget) SetProperty(tag protocol.PropertyTag, value protocol.Value) bool {
	p, ok := w.def.Property(tag)
	if !ok {
		return false
	}
	if !p.Type.Accepts(value, p.Nullable) {
		w.logger.Warn("property value does not match declared type",
			"widget", w.def.Name,
			"property", p.Name,
			"type", string(p.Type),
			"value", protocol.ValueString(value))
	}
	if protocol.IsNull(value) {
		delete(w.props, tag)
	} else {
		w.props[tag] = value
	}
	return true
}

func (w *Widget) SetModifiers(elements []protocol.ModifierElement) {
	w.modifiers = append([]protocol.ModifierElement(nil), elements...)
}

func (w *Widget) Children(tag protocol.ChildrenTag) (host.Container, bool) {
	if _, ok := w.def.ChildrenSlot(tag); !ok {
		return nil, false
	}
	l, ok := w.slots[tag]
	if !ok {
		l = NewList()
		w.slots[tag] = l
	}
	return l, true
}

func (w *Widget) BindEvents(id protocol.Id, sink host.EventSink) {
	w.id = id
	w.sink = sink
}

// Property returns the current value of the named property.
func (w *Widget) Property(name string) (protocol.Value, bool) {
	p, ok := w.def.PropertyNamed(name)
	if !ok {
		return nil, false
	}
	v, ok := w.props[p.Tag]
	return v, ok
}

// Modifiers returns the current modifier list.
func (w *Widget) Modifiers() []protocol.ModifierElement {
	return w.modifiers
}

// Slot returns the named children list, or nil when nothing was ever added
// to it.
func (w *Widget) Slot(name string) *List {
	c, ok := w.def.ChildrenNamed(name)
	if !ok {
		return nil
	}
	return w.slots[c.Tag]
}

// Trigger raises the named event, as a user interaction would.
func (w *Widget) Trigger(name string, args ...protocol.Value) error {
	e, ok := w.def.EventNamed(name)
	if !ok {
		return fmt.Errorf("%s has no event %q", w.def.Name, name)
	}
	if e.Arg == "" && len(args) > 0 {
		return fmt.Errorf("%s.%s takes no argument", w.def.Name, name)
	}
	if w.sink == nil {
		return fmt.Errorf("%s#%d is not bound", w.def.Name, w.id)
	}
	return w.sink.SendEvent(protocol.Event{Id: w.id, Tag: e.Tag, Args: args})
}

func (w *Widget) slotTags() []protocol.ChildrenTag {
	tags := make([]protocol.ChildrenTag, 0, len(w.slots))
	for tag := range w.slots {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// List is an ordered children container.
type List struct {
	widgets         []host.Widget
	detached        bool
	modifierUpdates int
}

// NewList returns an empty list, usable as a bridge's root container.
func NewList() *List {
	return &List{}
}

func (l *List) Insert(index int, w host.Widget) {
	l.widgets = append(l.widgets, nil)
	copy(l.widgets[index+1:], l.widgets[index:])
	l.widgets[index] = w
}

func (l *List) Move(fromIndex, toIndex, count int) {
	l.widgets = protocol.MoveRange(l.widgets, fromIndex, toIndex, count)
}

func (l *List) Remove(index, count int) {
	l.widgets = append(l.widgets[:index], l.widgets[index+count:]...)
}

func (l *List) OnModifierUpdated(index int, w host.Widget) {
	l.modifierUpdates++
}

func (l *List) Detach() {
	l.detached = true
	l.widgets = nil
}

// Len returns the number of children.
func (l *List) Len() int { return len(l.widgets) }

// At returns the child at index.
func (l *List) At(index int) *Widget {
	return l.widgets[index].(*Widget)
}

// Widgets returns the children in order.
func (l *List) Widgets() []*Widget {
	out := make([]*Widget, len(l.widgets))
	for i, w := range l.widgets {
		out[i] = w.(*Widget)
	}
	return out
}

// Detached reports whether the list's owner was removed.
func (l *List) Detached() bool { return l.detached }

// ModifierUpdates counts OnModifierUpdated notifications.
func (l *List) ModifierUpdates() int { return l.modifierUpdates }

// Find returns the first widget in the subtree with id, depth first.
func (l *List) Find(id protocol.Id) (*Widget, bool) {
	for _, w := range l.Widgets() {
		if w.id == id {
			return w, true
		}
		for _, tag := range w.slotTags() {
			if found, ok := w.slots[tag].Find(id); ok {
				return found, true
			}
		}
	}
	return nil, false
}
