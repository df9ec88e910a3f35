package protocol

import "fmt"

// Id identifies a node for its entire lifetime within one tree.
// Ids are allocated by the guest and never reused.
type Id uint32

// RootId is the implicit root node. It always exists.
const RootId Id = 0

func (id Id) String() string {
	return fmt.Sprintf("Id(%d)", uint32(id))
}

// WidgetTag identifies which kind of widget to instantiate.
type WidgetTag int32

// UnknownWidgetTag is carried by a PropertyChange decoded from a peer that
// did not send the owning widget tag.
const UnknownWidgetTag WidgetTag = -1

func (t WidgetTag) String() string {
	return fmt.Sprintf("WidgetTag(%d)", int32(t))
}

// PropertyTag identifies a property of a widget.
type PropertyTag int32

func (t PropertyTag) String() string {
	return fmt.Sprintf("PropertyTag(%d)", int32(t))
}

// ChildrenTag identifies a named child slot of a widget.
type ChildrenTag int32

// RootChildrenTag is the root's implicit child slot.
const RootChildrenTag ChildrenTag = 1

func (t ChildrenTag) String() string {
	return fmt.Sprintf("ChildrenTag(%d)", int32(t))
}

// EventTag identifies which callback of a widget fired.
type EventTag int32

func (t EventTag) String() string {
	return fmt.Sprintf("EventTag(%d)", int32(t))
}

// ModifierTag identifies a layout modifier kind.
type ModifierTag int32

func (t ModifierTag) String() string {
	return fmt.Sprintf("ModifierTag(%d)", int32(t))
}
