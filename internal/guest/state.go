package guest

import (
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// subtreeRemovalFixedIn is the first host version that cascades removals
// through its own id map.
var subtreeRemovalFixedIn = protocol.MustParseVersion("0.10.0-SNAPSHOT")

// ProtocolState allocates ids and buffers changes for one tree.
type ProtocolState struct {
	hostVersion protocol.RedwoodVersion
	nextValue   protocol.Id
	changes     []protocol.Change
	widgets     map[protocol.Id]ProtocolWidget
}

// NewProtocolState creates the encoder state for a host running hostVersion.
func NewProtocolState(hostVersion protocol.RedwoodVersion) *ProtocolState {
	return &ProtocolState{
		hostVersion: hostVersion,
		nextValue:   protocol.RootId + 1,
		widgets:     make(map[protocol.Id]ProtocolWidget),
	}
}

// HostVersion returns the version the state was created for.
func (s *ProtocolState) HostVersion() protocol.RedwoodVersion {
	return s.hostVersion
}

// SynthesizeSubtreeRemoval reports whether removals must itemize every
// descendant because the host does not cascade them.
func (s *ProtocolState) SynthesizeSubtreeRemoval() bool {
	return s.hostVersion.Less(subtreeRemovalFixedIn)
}

// NextId returns a fresh id. Ids are never reused.
func (s *ProtocolState) NextId() protocol.Id {
	id := s.nextValue
	s.nextValue++
	return id
}

func (s *ProtocolState) AppendCreate(id protocol.Id, tag protocol.WidgetTag) {
	s.changes = append(s.changes, protocol.Create{Id: id, Tag: tag})
}

// AppendPropertyChange records a property value. value must already be in
// its structured form; nil means null.
func (s *ProtocolState) AppendPropertyChange(id protocol.Id, widgetTag protocol.WidgetTag, tag protocol.PropertyTag, value protocol.Value) {
	s.changes = append(s.changes, protocol.PropertyChange{Id: id, WidgetTag: widgetTag, Tag: tag, Value: value})
}

func (s *ProtocolState) AppendPropertyChangeBool(id protocol.Id, widgetTag protocol.WidgetTag, tag protocol.PropertyTag, value bool) {
	s.changes = append(s.changes, protocol.PropertyChange{Id: id, WidgetTag: widgetTag, Tag: tag, Value: protocol.Bool(value)})
}

// AppendPropertyChangeUint records an unsigned value. The full uint32 range
// is carried as a non-negative integer.
func (s *ProtocolState) AppendPropertyChangeUint(id protocol.Id, widgetTag protocol.WidgetTag, tag protocol.PropertyTag, value uint32) {
	s.changes = append(s.changes, protocol.PropertyChange{Id: id, WidgetTag: widgetTag, Tag: tag, Value: protocol.Int(value)})
}

func (s *ProtocolState) AppendModifierChange(id protocol.Id, elements []protocol.ModifierElement) {
	s.changes = append(s.changes, protocol.ModifierChange{Id: id, Elements: elements})
}

func (s *ProtocolState) AppendAdd(id protocol.Id, tag protocol.ChildrenTag, childId protocol.Id, index int) {
	s.changes = append(s.changes, protocol.Add{Id: id, Tag: tag, ChildId: childId, Index: index})
}

func (s *ProtocolState) AppendMove(id protocol.Id, tag protocol.ChildrenTag, fromIndex, toIndex, count int) {
	s.changes = append(s.changes, protocol.Move{Id: id, Tag: tag, FromIndex: fromIndex, ToIndex: toIndex, Count: count})
}

func (s *ProtocolState) AppendRemove(id protocol.Id, tag protocol.ChildrenTag, index, count int, removedIds []protocol.Id) {
	if removedIds == nil {
		removedIds = []protocol.Id{}
	}
	s.changes = append(s.changes, protocol.Remove{Id: id, Tag: tag, Index: index, Count: count, RemovedIds: removedIds})
}

// TakeChanges returns the changes appended since the last call and clears
// the buffer. It returns false when there is nothing to send.
func (s *ProtocolState) TakeChanges() ([]protocol.Change, bool) {
	if len(s.changes) == 0 {
		return nil, false
	}
	out := s.changes
	s.changes = nil
	return out, true
}

// Pending returns the number of buffered changes.
func (s *ProtocolState) Pending() int {
	return len(s.changes)
}

// AddWidget registers w. Registering an id twice is a programming error in
// the caller.
func (s *ProtocolState) AddWidget(w ProtocolWidget) error {
	if _, ok := s.widgets[w.Id()]; ok {
		return protocol.NewDuplicateWidgetError(w.Id())
	}
	s.widgets[w.Id()] = w
	return nil
}

func (s *ProtocolState) RemoveWidget(id protocol.Id) {
	delete(s.widgets, id)
}

func (s *ProtocolState) GetWidget(id protocol.Id) (ProtocolWidget, bool) {
	w, ok := s.widgets[id]
	return w, ok
}

// MustGetWidget is GetWidget for callers that know id is registered.
func (s *ProtocolState) MustGetWidget(id protocol.Id) (ProtocolWidget, error) {
	w, ok := s.widgets[id]
	if !ok {
		return nil, protocol.NewRegistryMissError(id)
	}
	return w, nil
}

// WidgetCount returns the number of registered widgets.
func (s *ProtocolState) WidgetCount() int {
	return len(s.widgets)
}
