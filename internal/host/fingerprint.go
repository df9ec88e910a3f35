package host

import (
	"encoding/binary"
	"fmt"
	"hash"
	"slices"

	"github.com/cespare/xxhash"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// Fingerprint hashes the live tree: ids, widget tags, properties, modifiers
// and every slot in order. Two bridges that applied the same batches have
// equal fingerprints.
func (b *Bridge) Fingerprint() (uint64, error) {
	h := xxhash.New()
	if err := b.writeNode(h, b.nodes[protocol.RootId]); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func (b *Bridge) writeNode(h hash.Hash64, n *node) error {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(n.id))
	binary.BigEndian.PutUint32(buf[4:], uint32(n.widgetTag))
	h.Write(buf[:])

	tags := make([]protocol.PropertyTag, 0, len(n.props))
	for tag := range n.props {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	for _, tag := range tags {
		data, err := protocol.MarshalCanonical(n.props[tag])
		if err != nil {
			return fmt.Errorf("%s property %d: %w", n, tag, err)
		}
		fmt.Fprintf(h, "p%d=", tag)
		h.Write(data)
	}

	for _, e := range n.modifiers {
		fmt.Fprintf(h, "m%d", e.Tag)
		if !protocol.IsNull(e.Value) {
			data, err := protocol.MarshalCanonical(e.Value)
			if err != nil {
				return fmt.Errorf("%s modifier %d: %w", n, e.Tag, err)
			}
			h.Write(data)
		}
	}

	for _, tag := range n.slotTags() {
		s := n.slots[tag]
		fmt.Fprintf(h, "c%d[", tag)
		for _, child := range s.nodes {
			if err := b.writeNode(h, child); err != nil {
				return err
			}
		}
		h.Write([]byte{']'})
	}
	return nil
}

// ShapeHash returns a hash of the subtree at id that depends only on widget
// tags and slot structure. Subtrees with equal shape hashes can be reused by
// rebinding their properties. Placeholders and unknown ids hash to 0.
func (b *Bridge) ShapeHash(id protocol.Id) uint64 {
	n, ok := b.nodes[id]
	if !ok {
		return 0
	}
	return shapeHash(n)
}

func shapeHash(n *node) uint64 {
	if n.placeholder || n.widgetTag == protocol.UnknownWidgetTag {
		return 0
	}
	result := uint64(n.widgetTag)
	for _, tag := range n.slotTags() {
		result = result*37 + uint64(tag)
		for _, child := range n.slots[tag].nodes {
			result = result*41 + shapeHash(child)
		}
	}
	return result
}
