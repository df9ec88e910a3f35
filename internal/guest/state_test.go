package guest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

var latestVersion = protocol.MustParseVersion("0.12.0")

func TestProtocolState_NextIdStrictlyIncreasing(t *testing.T) {
	s := NewProtocolState(latestVersion)

	prev := protocol.RootId
	seen := make(map[protocol.Id]bool)
	for i := 0; i < 1000; i++ {
		id := s.NextId()
		assert.Greater(t, id, prev)
		assert.False(t, seen[id], "id %d returned twice", id)
		seen[id] = true
		prev = id
	}
}

func TestProtocolState_NextIdStartsAfterRoot(t *testing.T) {
	s := NewProtocolState(latestVersion)
	assert.Equal(t, protocol.Id(1), s.NextId())
	assert.Equal(t, protocol.Id(2), s.NextId())
}

func TestProtocolState_TakeChangesEmpty(t *testing.T) {
	s := NewProtocolState(latestVersion)

	changes, ok := s.TakeChanges()
	assert.False(t, ok)
	assert.Nil(t, changes)
}

func TestProtocolState_TakeChangesTwice(t *testing.T) {
	s := NewProtocolState(latestVersion)
	s.AppendCreate(1, 2)

	changes, ok := s.TakeChanges()
	require.True(t, ok)
	assert.Len(t, changes, 1)

	changes, ok = s.TakeChanges()
	assert.False(t, ok)
	assert.Nil(t, changes)
}

func TestProtocolState_PreservesOrder(t *testing.T) {
	s := NewProtocolState(latestVersion)
	s.AppendCreate(1, 2)
	s.AppendPropertyChange(1, 2, 3, protocol.String("text"))
	s.AppendPropertyChangeBool(1, 2, 4, true)
	s.AppendPropertyChangeUint(1, 2, 5, 4294967295)
	s.AppendModifierChange(1, []protocol.ModifierElement{{Tag: 1}})
	s.AppendAdd(protocol.RootId, protocol.RootChildrenTag, 1, 0)
	s.AppendMove(protocol.RootId, protocol.RootChildrenTag, 0, 1, 1)
	s.AppendRemove(protocol.RootId, protocol.RootChildrenTag, 0, 1, []protocol.Id{1})
	assert.Equal(t, 8, s.Pending())

	changes, ok := s.TakeChanges()
	require.True(t, ok)
	assert.Equal(t, []protocol.Change{
		protocol.Create{Id: 1, Tag: 2},
		protocol.PropertyChange{Id: 1, WidgetTag: 2, Tag: 3, Value: protocol.String("text")},
		protocol.PropertyChange{Id: 1, WidgetTag: 2, Tag: 4, Value: protocol.Bool(true)},
		protocol.PropertyChange{Id: 1, WidgetTag: 2, Tag: 5, Value: protocol.Int(4294967295)},
		protocol.ModifierChange{Id: 1, Elements: []protocol.ModifierElement{{Tag: 1}}},
		protocol.Add{Id: protocol.RootId, Tag: protocol.RootChildrenTag, ChildId: 1, Index: 0},
		protocol.Move{Id: protocol.RootId, Tag: protocol.RootChildrenTag, FromIndex: 0, ToIndex: 1, Count: 1},
		protocol.Remove{Id: protocol.RootId, Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
	}, changes)
	assert.Equal(t, 0, s.Pending())
}

func TestProtocolState_AddWidgetDuplicate(t *testing.T) {
	s := NewProtocolState(latestVersion)
	w := &Widget{id: 1, tag: 2, state: s}

	require.NoError(t, s.AddWidget(w))
	err := s.AddWidget(w)
	require.Error(t, err)
	assert.True(t, protocol.IsMisuseError(err))
	assert.Equal(t, "Attempted to add widget with ID 1 but one already exists", err.Error())
}

func TestProtocolState_WidgetRegistry(t *testing.T) {
	s := NewProtocolState(latestVersion)
	w := &Widget{id: 7, tag: 2, state: s}
	require.NoError(t, s.AddWidget(w))

	got, ok := s.GetWidget(7)
	require.True(t, ok)
	assert.Same(t, w, got)

	s.RemoveWidget(7)
	_, ok = s.GetWidget(7)
	assert.False(t, ok)

	_, err := s.MustGetWidget(7)
	require.Error(t, err)
	assert.Equal(t, protocol.ErrCodeRegistryMiss, protocol.CodeOf(err))
	assert.Equal(t, 0, s.WidgetCount())
}

func TestProtocolState_SynthesizeSubtreeRemoval(t *testing.T) {
	tests := []struct {
		version  string
		expected bool
	}{
		{"0.0.0", true},
		{"0.9.0", true},
		{"0.10.0-alpha", true},
		{"0.10.0-SNAPSHOT", false},
		{"0.10.0", false},
		{"1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			s := NewProtocolState(protocol.MustParseVersion(tt.version))
			assert.Equal(t, tt.expected, s.SynthesizeSubtreeRemoval())
		})
	}
}
