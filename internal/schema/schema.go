// Package schema compiles widget schemas written in CUE into the tag tables
// used by hosts and guests.
//
// A schema file declares widgets and layout modifiers:
//
//	schema: {name: "Sunspot", tag: 0}
//
//	widget: Text: {
//		tag: 3
//		property: text: {tag: 1, type: string}
//		event: onClick: {tag: 2}
//	}
//
//	widget: Row: {
//		tag: 1
//		children: children: {tag: 1}
//	}
//
//	modifier: Grow: {tag: 1, value: {value: number}}
//
// Widget and modifier tags are offset by the schema tag times 1,000,000 so
// that schemas can be combined without collisions.
package schema

import (
	"sort"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// MaxMemberTag bounds widget and modifier tags within one schema.
const MaxMemberTag = 1_000_000

// MaxSchemaTag bounds the schema tag.
const MaxSchemaTag = 4000

// ValueType is the declared type of a property, event argument or
// modifier value.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
	TypeArray  ValueType = "array"
	TypeObject ValueType = "object"
	TypeAny    ValueType = "any"
)

// Accepts reports whether v conforms to t. Null is accepted only when
// nullable is set.
func (t ValueType) Accepts(v protocol.Value, nullable bool) bool {
	if protocol.IsNull(v) {
		return nullable || t == TypeAny
	}
	switch v.(type) {
	case protocol.String:
		return t == TypeString || t == TypeAny
	case protocol.Int:
		return t == TypeInt || t == TypeFloat || t == TypeAny
	case protocol.Float:
		return t == TypeFloat || t == TypeAny
	case protocol.Bool:
		return t == TypeBool || t == TypeAny
	case protocol.Array:
		return t == TypeArray || t == TypeAny
	case protocol.Object:
		return t == TypeObject || t == TypeAny
	default:
		return false
	}
}

// Schema is a compiled widget schema.
type Schema struct {
	Name      string
	Tag       int
	Widgets   []Widget
	Modifiers []Modifier

	widgets   map[protocol.WidgetTag]*Widget
	modifiers map[protocol.ModifierTag]*Modifier
}

// Widget describes one widget kind.
type Widget struct {
	Name string

	// MemberTag is the tag as written; Tag includes the schema offset.
	MemberTag int
	Tag       protocol.WidgetTag

	Properties []Property
	Children   []Children
	Events     []Event
}

// Property describes a widget property.
type Property struct {
	Name     string
	Tag      protocol.PropertyTag
	Type     ValueType
	Nullable bool
}

// Children describes a named children slot.
type Children struct {
	Name string
	Tag  protocol.ChildrenTag
}

// Event describes a widget callback. Arg is empty for callbacks without an
// argument.
type Event struct {
	Name string
	Tag  protocol.EventTag
	Arg  ValueType
}

// Modifier describes a layout modifier. Value is empty for modifiers
// without a payload.
type Modifier struct {
	Name      string
	MemberTag int
	Tag       protocol.ModifierTag
	Value     ValueType
}

// index builds the lookup tables and sorts members by tag.
func (s *Schema) index() {
	sort.SliceStable(s.Widgets, func(i, j int) bool { return s.Widgets[i].Tag < s.Widgets[j].Tag })
	sort.SliceStable(s.Modifiers, func(i, j int) bool { return s.Modifiers[i].Tag < s.Modifiers[j].Tag })

	s.widgets = make(map[protocol.WidgetTag]*Widget, len(s.Widgets))
	for i := range s.Widgets {
		w := &s.Widgets[i]
		sort.SliceStable(w.Properties, func(i, j int) bool { return w.Properties[i].Tag < w.Properties[j].Tag })
		sort.SliceStable(w.Children, func(i, j int) bool { return w.Children[i].Tag < w.Children[j].Tag })
		sort.SliceStable(w.Events, func(i, j int) bool { return w.Events[i].Tag < w.Events[j].Tag })
		if _, dup := s.widgets[w.Tag]; !dup {
			s.widgets[w.Tag] = w
		}
	}
	s.modifiers = make(map[protocol.ModifierTag]*Modifier, len(s.Modifiers))
	for i := range s.Modifiers {
		m := &s.Modifiers[i]
		if _, dup := s.modifiers[m.Tag]; !dup {
			s.modifiers[m.Tag] = m
		}
	}
}

// Widget returns the widget with tag.
func (s *Schema) Widget(tag protocol.WidgetTag) (*Widget, bool) {
	w, ok := s.widgets[tag]
	return w, ok
}

// WidgetNamed returns the widget called name.
func (s *Schema) WidgetNamed(name string) (*Widget, bool) {
	for i := range s.Widgets {
		if s.Widgets[i].Name == name {
			return &s.Widgets[i], true
		}
	}
	return nil, false
}

// Modifier returns the modifier with tag.
func (s *Schema) Modifier(tag protocol.ModifierTag) (*Modifier, bool) {
	m, ok := s.modifiers[tag]
	return m, ok
}

// ModifierNamed returns the modifier called name.
func (s *Schema) ModifierNamed(name string) (*Modifier, bool) {
	for i := range s.Modifiers {
		if s.Modifiers[i].Name == name {
			return &s.Modifiers[i], true
		}
	}
	return nil, false
}

func (w *Widget) Property(tag protocol.PropertyTag) (*Property, bool) {
	for i := range w.Properties {
		if w.Properties[i].Tag == tag {
			return &w.Properties[i], true
		}
	}
	return nil, false
}

func (w *Widget) PropertyNamed(name string) (*Property, bool) {
	for i := range w.Properties {
		if w.Properties[i].Name == name {
			return &w.Properties[i], true
		}
	}
	return nil, false
}

func (w *Widget) ChildrenSlot(tag protocol.ChildrenTag) (*Children, bool) {
	for i := range w.Children {
		if w.Children[i].Tag == tag {
			return &w.Children[i], true
		}
	}
	return nil, false
}

func (w *Widget) ChildrenNamed(name string) (*Children, bool) {
	for i := range w.Children {
		if w.Children[i].Name == name {
			return &w.Children[i], true
		}
	}
	return nil, false
}

func (w *Widget) Event(tag protocol.EventTag) (*Event, bool) {
	for i := range w.Events {
		if w.Events[i].Tag == tag {
			return &w.Events[i], true
		}
	}
	return nil, false
}

func (w *Widget) EventNamed(name string) (*Event, bool) {
	for i := range w.Events {
		if w.Events[i].Name == name {
			return &w.Events[i], true
		}
	}
	return nil, false
}
