package protocol

import (
	"fmt"
	"strings"
)

// Change is one wire-level tree mutation. The set of implementations is
// closed: Create, PropertyChange, ModifierChange, Add, Move, Remove.
type Change interface {
	ChangeId() Id
	change()
}

// ChildrenChange is the subset of changes that edit a children slot.
type ChildrenChange interface {
	Change
	ChildrenTag() ChildrenTag
	childrenChange()
}

// Create instantiates a node of kind Tag under Id.
type Create struct {
	Id  Id
	Tag WidgetTag
}

func (c Create) ChangeId() Id { return c.Id }
func (Create) change()        {}

func (c Create) String() string {
	return fmt.Sprintf("Create(id=%d, tag=%d)", c.Id, c.Tag)
}

// PropertyChange sets the current value of one property. Value may be nil
// or Null. WidgetTag is UnknownWidgetTag when the sender did not supply it.
type PropertyChange struct {
	Id        Id
	WidgetTag WidgetTag
	Tag       PropertyTag
	Value     Value
}

func (c PropertyChange) ChangeId() Id { return c.Id }
func (PropertyChange) change()        {}

func (c PropertyChange) String() string {
	return fmt.Sprintf("PropertyChange(id=%d, widgetTag=%d, tag=%d, value=%s)",
		c.Id, c.WidgetTag, c.Tag, ValueString(c.Value))
}

// ModifierElement is one entry of a node's modifier list.
type ModifierElement struct {
	Tag   ModifierTag
	Value Value
}

func (e ModifierElement) String() string {
	if IsNull(e.Value) {
		return fmt.Sprintf("ModifierElement(tag=%d)", e.Tag)
	}
	return fmt.Sprintf("ModifierElement(tag=%d, value=%s)", e.Tag, ValueString(e.Value))
}

// ModifierChange replaces the node's whole modifier list.
type ModifierChange struct {
	Id       Id
	Elements []ModifierElement
}

func (c ModifierChange) ChangeId() Id { return c.Id }
func (ModifierChange) change()        {}

func (c ModifierChange) String() string {
	parts := make([]string, len(c.Elements))
	for i, e := range c.Elements {
		parts[i] = e.String()
	}
	return fmt.Sprintf("ModifierChange(id=%d, elements=[%s])", c.Id, strings.Join(parts, ", "))
}

// Add inserts the existing node ChildId into slot Tag of Id at Index.
type Add struct {
	Id      Id
	Tag     ChildrenTag
	ChildId Id
	Index   int
}

func (c Add) ChangeId() Id             { return c.Id }
func (c Add) ChildrenTag() ChildrenTag { return c.Tag }
func (Add) change()                    {}
func (Add) childrenChange()            {}

func (c Add) String() string {
	return fmt.Sprintf("Add(id=%d, tag=%d, childId=%d, index=%d)", c.Id, c.Tag, c.ChildId, c.Index)
}

// Move relocates Count children starting at FromIndex so that they end up
// at ToIndex. Both indices are positions before the move.
type Move struct {
	Id        Id
	Tag       ChildrenTag
	FromIndex int
	ToIndex   int
	Count     int
}

func (c Move) ChangeId() Id             { return c.Id }
func (c Move) ChildrenTag() ChildrenTag { return c.Tag }
func (Move) change()                    {}
func (Move) childrenChange()            {}

func (c Move) String() string {
	return fmt.Sprintf("Move(id=%d, tag=%d, fromIndex=%d, toIndex=%d, count=%d)",
		c.Id, c.Tag, c.FromIndex, c.ToIndex, c.Count)
}

// Remove detaches Count children starting at Index. RemovedIds lists exactly
// the detached ids in order. It is always an array on the wire, and decoded
// Removes carry a non-nil slice even when Count is zero.
type Remove struct {
	Id         Id
	Tag        ChildrenTag
	Index      int
	Count      int
	RemovedIds []Id
}

func (c Remove) ChangeId() Id             { return c.Id }
func (c Remove) ChildrenTag() ChildrenTag { return c.Tag }
func (Remove) change()                    {}
func (Remove) childrenChange()            {}

func (c Remove) String() string {
	ids := make([]string, len(c.RemovedIds))
	for i, id := range c.RemovedIds {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("Remove(id=%d, tag=%d, index=%d, count=%d, removedIds=[%s])",
		c.Id, c.Tag, c.Index, c.Count, strings.Join(ids, ", "))
}

// ChangeKind returns the wire discriminator for c.
func ChangeKind(c Change) string {
	switch c.(type) {
	case Create:
		return kindCreate
	case PropertyChange:
		return kindProperty
	case ModifierChange:
		return kindModifier
	case Add:
		return kindAdd
	case Move:
		return kindMove
	case Remove:
		return kindRemove
	default:
		return "unknown"
	}
}
