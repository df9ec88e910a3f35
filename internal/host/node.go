package host

import (
	"fmt"
	"slices"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// node is one entry of the bridge's arena. Parent links are ids resolved
// through the arena, never pointers.
type node struct {
	id        protocol.Id
	widgetTag protocol.WidgetTag

	// widget is nil for the root and for placeholders, which stand in for
	// ids whose Create named an unknown widget tag.
	widget      Widget
	placeholder bool

	parent    protocol.Id
	parentTag protocol.ChildrenTag
	attached  bool

	// index is the node's position in its parent slot.
	index int

	slots     map[protocol.ChildrenTag]*children
	props     map[protocol.PropertyTag]protocol.Value
	modifiers []protocol.ModifierElement
}

func (n *node) String() string {
	switch {
	case n.id == protocol.RootId:
		return "Root"
	case n.placeholder:
		return fmt.Sprintf("Placeholder(id=%d, tag=%d)", n.id, n.widgetTag)
	default:
		return fmt.Sprintf("Node(id=%d, tag=%d)", n.id, n.widgetTag)
	}
}

// slotTags returns the node's children tags in ascending order.
func (n *node) slotTags() []protocol.ChildrenTag {
	tags := make([]protocol.ChildrenTag, 0, len(n.slots))
	for tag := range n.slots {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// children is one ordered children slot. Every record's index equals its
// position in nodes after each operation.
//
// Placeholders occupy positions in nodes so that indices agree with the
// guest, but they have no widget, so container calls are translated to
// count only real widgets.
type children struct {
	tag       protocol.ChildrenTag
	container Container
	known     bool

	nodes        []*node
	placeholders int
}

func newChildren(tag protocol.ChildrenTag, container Container, known bool) *children {
	return &children{tag: tag, container: container, known: known}
}

func (c *children) len() int { return len(c.nodes) }

// widgetIndex maps a slot position to the matching container position.
func (c *children) widgetIndex(i int) int {
	if c.placeholders == 0 {
		return i
	}
	count := 0
	for _, n := range c.nodes[:i] {
		if n.widget != nil {
			count++
		}
	}
	return count
}

func (c *children) insert(index int, n *node) {
	for _, shifted := range c.nodes[index:] {
		shifted.index++
	}
	n.index = index
	c.nodes = slices.Insert(c.nodes, index, n)

	if n.widget == nil {
		c.placeholders++
		return
	}
	if c.container != nil {
		c.container.Insert(c.widgetIndex(index), n.widget)
	}
}

// remove drops count records at index and returns them.
func (c *children) remove(index, count int) []*node {
	widgetIndex := c.widgetIndex(index)
	removed := slices.Clone(c.nodes[index : index+count])
	widgetCount := 0
	for _, n := range removed {
		if n.widget == nil {
			c.placeholders--
		} else {
			widgetCount++
		}
	}

	c.nodes = slices.Delete(c.nodes, index, index+count)
	for _, shifted := range c.nodes[index:] {
		shifted.index -= count
	}

	if c.container != nil && widgetCount > 0 {
		c.container.Remove(widgetIndex, widgetCount)
	}
	return removed
}

// move relocates count records. from and to are positions before the move.
func (c *children) move(from, to, count int) {
	widgetFrom := c.widgetIndex(from)
	widgetTo := c.widgetIndex(to)
	widgetCount := c.widgetIndex(from+count) - widgetFrom

	c.nodes = protocol.MoveRange(c.nodes, from, to, count)

	// Every record between the old and new location shifts, not only the
	// moved block.
	lowerBound := min(from, to)
	upperBound := max(to, from+count)
	for i := lowerBound; i < upperBound; i++ {
		c.nodes[i].index = i
	}

	if c.container != nil && widgetCount > 0 && widgetFrom != widgetTo {
		c.container.Move(widgetFrom, widgetTo, widgetCount)
	}
}

// verifyIndices reports the first record whose cached index is stale.
func (c *children) verifyIndices() error {
	for i, n := range c.nodes {
		if n.index != i {
			return fmt.Errorf("%s at position %d has cached index %d", n, i, n.index)
		}
	}
	return nil
}
