package host

import (
	"fmt"
	"slices"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// dryRun walks a batch over the bridge's tree without touching it. Slots
// are copied the first time the batch changes them; everything else is
// read from the arena.
type dryRun struct {
	b *Bridge

	live     map[protocol.Id]bool
	attached map[protocol.Id]bool

	// fresh marks ids created or removed by the batch, whose arena slots
	// no longer apply.
	fresh map[protocol.Id]bool
	slots map[slotKey][]protocol.Id
}

type slotKey struct {
	id  protocol.Id
	tag protocol.ChildrenTag
}

func newDryRun(b *Bridge) *dryRun {
	return &dryRun{
		b:        b,
		live:     make(map[protocol.Id]bool),
		attached: make(map[protocol.Id]bool),
		fresh:    make(map[protocol.Id]bool),
		slots:    make(map[slotKey][]protocol.Id),
	}
}

// check returns the first format error in changes. It stops quietly at the
// first identity error, where applying stops too.
func (d *dryRun) check(changes []protocol.Change) *protocol.Error {
	for _, c := range changes {
		ok, err := d.step(c)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

func (d *dryRun) step(c protocol.Change) (bool, *protocol.Error) {
	switch ch := c.(type) {
	case protocol.Create:
		if d.isLive(ch.Id) {
			return false, nil
		}
		d.forget(ch.Id)
		d.live[ch.Id] = true
		d.attached[ch.Id] = false

	case protocol.PropertyChange:
		return d.isLive(ch.Id), nil

	case protocol.ModifierChange:
		if !d.isLive(ch.Id) {
			return false, nil
		}
		if ch.Id == protocol.RootId {
			return false, rootModifierError(ch)
		}

	case protocol.Add:
		if !d.isLive(ch.Id) || !d.isLive(ch.ChildId) {
			return false, nil
		}
		if ch.ChildId == protocol.RootId || d.isAttached(ch.ChildId) {
			return false, alreadyParentedError(ch)
		}
		ids := d.slot(ch.Id, ch.Tag)
		if ch.Index > len(ids) {
			return false, protocol.NewIndexError(ch, len(ids))
		}
		d.slots[slotKey{ch.Id, ch.Tag}] = slices.Insert(slices.Clone(ids), ch.Index, ch.ChildId)
		d.attached[ch.ChildId] = true

	case protocol.Move:
		if !d.isLive(ch.Id) {
			return false, nil
		}
		ids := d.slot(ch.Id, ch.Tag)
		if !protocol.ValidMove(len(ids), ch.FromIndex, ch.ToIndex, ch.Count) {
			return false, protocol.NewIndexError(ch, len(ids))
		}
		d.slots[slotKey{ch.Id, ch.Tag}] = protocol.MoveRange(slices.Clone(ids), ch.FromIndex, ch.ToIndex, ch.Count)

	case protocol.Remove:
		if !d.isLive(ch.Id) {
			return false, nil
		}
		ids := d.slot(ch.Id, ch.Tag)
		if !inRange(len(ids), ch.Index, ch.Count) {
			return false, protocol.NewIndexError(ch, len(ids))
		}
		removed := ids[ch.Index : ch.Index+ch.Count]
		for i, id := range removed {
			if id != ch.RemovedIds[i] {
				return false, removedIdError(ch, i, id)
			}
		}
		for _, id := range removed {
			d.discard(id)
		}
		d.slots[slotKey{ch.Id, ch.Tag}] = slices.Delete(slices.Clone(ids), ch.Index, ch.Index+ch.Count)

	default:
		err := protocol.NewFormatError("unknown change type %T", c)
		err.Change = c
		return false, err
	}
	return true, nil
}

func (d *dryRun) isLive(id protocol.Id) bool {
	if live, ok := d.live[id]; ok {
		return live
	}
	_, ok := d.b.nodes[id]
	return ok
}

func (d *dryRun) isAttached(id protocol.Id) bool {
	if attached, ok := d.attached[id]; ok {
		return attached
	}
	n, ok := d.b.nodes[id]
	return ok && n.attached
}

// slot returns the ids in slot tag of id as the batch left them so far.
// The result must not be modified.
func (d *dryRun) slot(id protocol.Id, tag protocol.ChildrenTag) []protocol.Id {
	if ids, ok := d.slots[slotKey{id, tag}]; ok {
		return ids
	}
	if d.fresh[id] {
		return nil
	}
	n, ok := d.b.nodes[id]
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

func (d *dryRun) slotTags(id protocol.Id) []protocol.ChildrenTag {
	var tags []protocol.ChildrenTag
	if n, ok := d.b.nodes[id]; ok && !d.fresh[id] {
		tags = n.slotTags()
	}
	for key := range d.slots {
		if key.id == id && !slices.Contains(tags, key.tag) {
			tags = append(tags, key.tag)
		}
	}
	return tags
}

// discard marks id and its subtree as removed.
func (d *dryRun) discard(id protocol.Id) {
	for _, tag := range d.slotTags(id) {
		for _, child := range d.slot(id, tag) {
			d.discard(child)
		}
	}
	d.forget(id)
	d.live[id] = false
	d.attached[id] = false
}

func (d *dryRun) forget(id protocol.Id) {
	d.fresh[id] = true
	for key := range d.slots {
		if key.id == id {
			delete(d.slots, key)
		}
	}
}

// inRange reports whether count records starting at index fit in a slot of
// length n.
func inRange(n, index, count int) bool {
	return index >= 0 && count >= 0 && index <= n && count <= n-index
}

func rootModifierError(ch protocol.ModifierChange) *protocol.Error {
	return &protocol.Error{Code: protocol.ErrCodeFormat, Message: "Root cannot receive modifiers", Id: ch.Id, Change: ch}
}

func alreadyParentedError(ch protocol.Add) *protocol.Error {
	return &protocol.Error{
		Code:    protocol.ErrCodeFormat,
		Message: fmt.Sprintf("Add attempted to insert widget with ID %d which already has a parent", ch.ChildId),
		Id:      ch.ChildId,
		Change:  ch,
	}
}

func removedIdError(ch protocol.Remove, i int, found protocol.Id) *protocol.Error {
	return &protocol.Error{
		Code:    protocol.ErrCodeFormat,
		Message: fmt.Sprintf("Remove expected ID %d at index %d but found ID %d", ch.RemovedIds[i], ch.Index+i, found),
		Id:      ch.Id,
		Change:  ch,
	}
}
