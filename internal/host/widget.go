package host

import (
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Widget is a concrete widget instantiated by a WidgetFactory.
type Widget interface {
	// SetProperty applies a property value. It returns false when the
	// widget has no property with that tag.
	SetProperty(tag protocol.PropertyTag, value protocol.Value) bool

	// SetModifiers replaces the widget's modifier list.
	SetModifiers(elements []protocol.ModifierElement)

	// Children returns the container for a children slot, or false when the
	// widget has no slot with that tag.
	Children(tag protocol.ChildrenTag) (Container, bool)
}

// Container is an ordered list of child widgets owned by a parent widget.
// Indices follow the Add, Move and Remove changes.
type Container interface {
	Insert(index int, w Widget)
	Move(fromIndex, toIndex, count int)
	Remove(index, count int)

	// OnModifierUpdated is called when the modifiers of the child at index
	// change. It may be called repeatedly with identical modifiers.
	OnModifierUpdated(index int, w Widget)

	// Detach releases every child. No calls follow it.
	Detach()
}

// WidgetFactory instantiates widgets by tag.
type WidgetFactory interface {
	// Create returns false when the tag is unknown.
	Create(tag protocol.WidgetTag) (Widget, bool)

	// KnownModifier reports whether a modifier tag is understood.
	KnownModifier(tag protocol.ModifierTag) bool
}

// EventSink receives events raised by widgets.
type EventSink interface {
	SendEvent(e protocol.Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(e protocol.Event) error

func (f EventSinkFunc) SendEvent(e protocol.Event) error { return f(e) }

// EventSource is implemented by widgets that raise events. The bridge binds
// each such widget to its id right after creation.
type EventSource interface {
	BindEvents(id protocol.Id, sink EventSink)
}
