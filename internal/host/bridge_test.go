package host

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashapp/redwood-sub006/internal/protocol"
)

func addToRoot(id protocol.Id, index int) protocol.Add {
	return protocol.Add{Id: protocol.RootId, Tag: protocol.RootChildrenTag, ChildId: id, Index: index}
}

func TestBridge_CreateDuplicateId(t *testing.T) {
	f := newFixture()

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: textTag},
		protocol.Create{Id: 1, Tag: textTag},
	})
	require.Error(t, err)
	assert.Equal(t, "Insert attempted to replace existing widget with ID 1", err.Error())
	assert.True(t, protocol.IsIdentityError(err))
	assert.True(t, f.bridge.Has(1))
}

func TestBridge_CreateRootId(t *testing.T) {
	f := newFixture()

	err := f.bridge.SendChanges([]protocol.Change{protocol.Create{Id: protocol.RootId, Tag: textTag}})
	require.Error(t, err)
	assert.Equal(t, "Insert attempted to replace existing widget with ID 0", err.Error())
}

func TestBridge_PropertiesAndTree(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.PropertyChange{Id: 2, WidgetTag: textTag, Tag: textProp, Value: protocol.String("hello")},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
	}))

	assert.Equal(t, 2, f.bridge.NodeCount())
	assert.Equal(t, []protocol.Id{1}, f.root.ids())
	assert.Equal(t, []protocol.Id{2}, f.widget(1).slots[rowSlot].ids())
	assert.Equal(t, protocol.String("hello"), f.widget(2).props[textProp])

	tag, ok := f.bridge.WidgetTag(2)
	require.True(t, ok)
	assert.Equal(t, textTag, tag)
}

func TestBridge_UseAfterRemove(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: textTag},
		addToRoot(1, 0),
	}))

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
		protocol.PropertyChange{Id: 1, WidgetTag: textTag, Tag: textProp, Value: protocol.String("late")},
	})
	require.Error(t, err)
	assert.Equal(t, "Unknown widget ID 1", err.Error())
	assert.Equal(t, protocol.ErrCodeUnknownId, protocol.CodeOf(err))
	assert.Empty(t, f.root.ids())
}

func TestBridge_RemoveDiscardsSubtree(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: rowTag},
		protocol.Create{Id: 3, Tag: textTag},
		protocol.Add{Id: 2, Tag: rowSlot, ChildId: 3, Index: 0},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
	}))
	outer := f.widget(1).slots[rowSlot]
	inner := f.widget(2).slots[rowSlot]

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
	}))
	assert.Equal(t, 0, f.bridge.NodeCount())
	assert.True(t, outer.detached)
	assert.True(t, inner.detached)

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.PropertyChange{Id: 3, WidgetTag: textTag, Tag: textProp, Value: protocol.String("x")},
	})
	require.Error(t, err)
	assert.Equal(t, "Unknown widget ID 3", err.Error())
}

func TestBridge_SynthesizedSubtreeRemoval(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: rowTag},
		protocol.Create{Id: 3, Tag: textTag},
		protocol.Add{Id: 2, Tag: rowSlot, ChildId: 3, Index: 0},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
	}))

	// Older guests itemize every descendant before removing the top.
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Id: 2, Tag: rowSlot, Index: 0, Count: 1, RemovedIds: []protocol.Id{3}},
		protocol.Remove{Id: 1, Tag: rowSlot, Index: 0, Count: 1, RemovedIds: []protocol.Id{2}},
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
	}))
	assert.Equal(t, 0, f.bridge.NodeCount())
	assert.Empty(t, f.root.ids())
}

func TestBridge_ModifierNotification(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: textTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.ModifierChange{Id: 1, Elements: []protocol.ModifierElement{{Tag: 1}}},
	}))
	assert.Empty(t, f.root.log, "detached nodes do not notify")

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		addToRoot(1, 0),
		protocol.ModifierChange{Id: 1, Elements: []protocol.ModifierElement{{Tag: 2, Value: protocol.Int(4)}}},
		addToRoot(2, 0),
		protocol.ModifierChange{Id: 1, Elements: []protocol.ModifierElement{}},
	}))
	assert.Equal(t, []string{"insert 0", "modifier 0", "insert 0", "modifier 1"}, f.root.log)
	assert.Empty(t, f.widget(1).modifiers)
}

func TestBridge_RootModifierRejected(t *testing.T) {
	f := newFixture()
	err := f.bridge.SendChanges([]protocol.Change{
		protocol.ModifierChange{Id: protocol.RootId, Elements: []protocol.ModifierElement{{Tag: 1}}},
	})
	require.Error(t, err)
	assert.True(t, protocol.IsFormatError(err))
}

func TestBridge_ThrowingMismatch(t *testing.T) {
	tests := []struct {
		name    string
		changes []protocol.Change
		message string
		tag     int32
	}{
		{
			name:    "widget",
			changes: []protocol.Change{protocol.Create{Id: 1, Tag: 99}},
			message: "Unknown widget tag 99",
			tag:     99,
		},
		{
			name: "property",
			changes: []protocol.Change{
				protocol.Create{Id: 1, Tag: textTag},
				protocol.PropertyChange{Id: 1, WidgetTag: textTag, Tag: 7, Value: protocol.Int(1)},
			},
			message: "Unknown property tag 7 for widget tag 3",
			tag:     7,
		},
		{
			name: "modifier",
			changes: []protocol.Change{
				protocol.Create{Id: 1, Tag: textTag},
				protocol.ModifierChange{Id: 1, Elements: []protocol.ModifierElement{{Tag: 1}, {Tag: 9}}},
			},
			message: "Unknown layout modifier tag 9",
			tag:     9,
		},
		{
			name: "children",
			changes: []protocol.Change{
				protocol.Create{Id: 1, Tag: rowTag},
				protocol.Create{Id: 2, Tag: textTag},
				protocol.Add{Id: 1, Tag: 5, ChildId: 2, Index: 0},
			},
			message: "Unknown children tag 5 for widget tag 1",
			tag:     5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			err := f.bridge.SendChanges(tt.changes)
			require.Error(t, err)
			assert.Equal(t, tt.message, err.Error())
			assert.True(t, protocol.IsSchemaError(err))

			var pe *protocol.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.tag, pe.Tag)
		})
	}
}

func TestBridge_TolerantMismatch(t *testing.T) {
	mismatch := &recordingMismatch{}
	f := newFixture(WithMismatchHandler(mismatch))

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: 99},
		protocol.PropertyChange{Id: 2, WidgetTag: 99, Tag: 1, Value: protocol.Int(1)},
		protocol.ModifierChange{Id: 2, Elements: []protocol.ModifierElement{{Tag: 9}}},
		protocol.Create{Id: 3, Tag: textTag},
		protocol.PropertyChange{Id: 3, WidgetTag: textTag, Tag: 7, Value: protocol.Int(1)},
		protocol.ModifierChange{Id: 3, Elements: []protocol.ModifierElement{{Tag: 1}, {Tag: 9}, {Tag: 2}}},
		protocol.Create{Id: 4, Tag: textTag},
		protocol.Add{Id: 1, Tag: 5, ChildId: 4, Index: 0},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 3, Index: 1},
		addToRoot(1, 0),
	}))

	assert.Equal(t, []string{
		"widget 99",
		"widget 99",
		"widget 99",
		"property 7 of 3",
		"modifier 9",
		"children 5 of 1",
		"widget 99",
	}, mismatch.events)
	assert.True(t, f.bridge.IsPlaceholder(2))
	assert.Equal(t, []protocol.ModifierElement{{Tag: 1}, {Tag: 2}}, f.widget(3).modifiers)
	assert.Equal(t, []protocol.Id{3}, f.widget(1).slots[rowSlot].ids())
	assert.Equal(t, []protocol.Id{2, 3}, f.bridge.ChildIds(1, rowSlot))
	assert.Equal(t, []protocol.Id{4}, f.bridge.ChildIds(1, 5))

	// Removing the row still discards the child held in the unknown slot.
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
	}))
	assert.Equal(t, 0, f.bridge.NodeCount())
}

func TestBridge_MismatchHandlerErrorStopsBatch(t *testing.T) {
	stop := errors.New("stop")
	f := newFixture(WithMismatchHandler(&stoppingMismatch{err: stop}))

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: 99},
		protocol.Create{Id: 2, Tag: textTag},
	})
	require.ErrorIs(t, err, stop)
	assert.False(t, f.bridge.Has(1))
	assert.False(t, f.bridge.Has(2))
}

func TestBridge_PlaceholderOperationsReportMismatch(t *testing.T) {
	mismatch := &recordingMismatch{}
	f := newFixture(WithMismatchHandler(mismatch))

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: 99},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.Add{Id: 1, Tag: 1, ChildId: 2, Index: 0},
		protocol.Move{Id: 1, Tag: 1, FromIndex: 0, ToIndex: 0, Count: 0},
		protocol.Remove{Id: 1, Tag: 1, Index: 0, Count: 1, RemovedIds: []protocol.Id{2}},
		addToRoot(1, 0),
	}))

	assert.Equal(t, []string{
		"widget 99", // create
		"widget 99", // add into placeholder
		"widget 99", // move in placeholder
		"widget 99", // remove from placeholder
		"widget 99", // add placeholder to root
	}, mismatch.events)
	assert.False(t, f.bridge.Has(2))
	assert.Equal(t, []protocol.Id{1}, f.bridge.ChildIds(protocol.RootId, protocol.RootChildrenTag))
}

func TestBridge_PlaceholderMismatchErrorStopsBatch(t *testing.T) {
	stop := errors.New("stop")
	mismatch := &stopAfter{n: 1, err: stop}
	f := newFixture(WithMismatchHandler(mismatch))

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: 99},
		protocol.PropertyChange{Id: 1, WidgetTag: 99, Tag: 1, Value: protocol.Int(1)},
		addToRoot(1, 0),
	})
	require.ErrorIs(t, err, stop)
	assert.True(t, f.bridge.IsPlaceholder(1))
	assert.Empty(t, f.bridge.ChildIds(protocol.RootId, protocol.RootChildrenTag))
}

// stopAfter tolerates the first n unknown widgets and fails on the next.
type stopAfter struct {
	recordingMismatch
	n   int
	err error
}

func (s *stopAfter) OnUnknownWidget(tag protocol.WidgetTag) error {
	if s.n == 0 {
		return s.err
	}
	s.n--
	return nil
}

type stoppingMismatch struct {
	recordingMismatch
	err error
}

func (s stoppingMismatch) OnUnknownWidget(protocol.WidgetTag) error { return s.err }

func TestBridge_FormatErrorsRejectWholeBatch(t *testing.T) {
	tests := []struct {
		name   string
		change protocol.Change
	}{
		{"remove count mismatch", protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 2, RemovedIds: []protocol.Id{1}}},
		{"negative add index", protocol.Add{Tag: protocol.RootChildrenTag, ChildId: 1, Index: -1}},
		{"negative move count", protocol.Move{Tag: protocol.RootChildrenTag, FromIndex: 0, ToIndex: 1, Count: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			err := f.bridge.SendChanges([]protocol.Change{
				protocol.Create{Id: 1, Tag: textTag},
				tt.change,
			})
			require.Error(t, err)
			assert.True(t, protocol.IsFormatError(err))
			assert.False(t, f.bridge.Has(1), "nothing is applied")
		})
	}
}

func TestBridge_StructuralFormatErrorsLeaveTreeUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		changes []protocol.Change
		message string
	}{
		{
			name: "remove sees earlier adds",
			changes: []protocol.Change{
				protocol.Create{Id: 3, Tag: textTag},
				addToRoot(3, 0),
				protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
			},
			message: "Remove expected ID 1 at index 0 but found ID 3",
		},
		{
			name: "add index past end",
			changes: []protocol.Change{
				protocol.Create{Id: 3, Tag: textTag},
				protocol.PropertyChange{Id: 1, WidgetTag: textTag, Tag: textProp, Value: protocol.String("changed")},
				addToRoot(3, 3),
			},
			message: "Add(id=0, tag=1, childId=3, index=3) out of range for children of size 2",
		},
		{
			name: "add already parented",
			changes: []protocol.Change{
				protocol.Create{Id: 3, Tag: textTag},
				addToRoot(3, 0),
				addToRoot(3, 1),
			},
			message: "Add attempted to insert widget with ID 3 which already has a parent",
		},
		{
			name: "move past end after remove",
			changes: []protocol.Change{
				protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
				protocol.Move{Tag: protocol.RootChildrenTag, FromIndex: 0, ToIndex: 2, Count: 1},
			},
		},
		{
			name: "root modifiers",
			changes: []protocol.Change{
				protocol.Create{Id: 3, Tag: textTag},
				protocol.ModifierChange{Id: protocol.RootId},
			},
			message: "Root cannot receive modifiers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			addTexts(t, f, 2)
			before, err := f.bridge.Fingerprint()
			require.NoError(t, err)

			err = f.bridge.SendChanges(tt.changes)
			require.Error(t, err)
			assert.True(t, protocol.IsFormatError(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}

			after, err := f.bridge.Fingerprint()
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.False(t, f.bridge.Has(3))
			assert.True(t, f.bridge.Has(1))
			assert.Equal(t, []protocol.Id{1, 2}, f.root.ids())
			assert.Equal(t, 2, f.bridge.NodeCount())
			require.NoError(t, f.bridge.VerifyIndices())
		})
	}
}

func TestBridge_RemovedSubtreeIsDeadForTheRestOfTheBatch(t *testing.T) {
	f := newFixture()

	// The dry run must see that 2 died with its parent, so the property
	// change is an identity error rather than a later format error.
	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
		protocol.PropertyChange{Id: 2, WidgetTag: textTag, Tag: textProp, Value: protocol.String("x")},
		addToRoot(2, 5),
	})
	require.Error(t, err)
	assert.Equal(t, "Unknown widget ID 2", err.Error())
	assert.Equal(t, 0, f.bridge.NodeCount())
}

func TestBridge_RecreatedIdStartsEmpty(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
	}))

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
	}))
	assert.Equal(t, []protocol.Id{2}, f.bridge.ChildIds(1, rowSlot))
	require.NoError(t, f.bridge.VerifyIndices())
}

func TestBridge_HugeIndices(t *testing.T) {
	tests := []struct {
		name   string
		change protocol.Change
	}{
		{"remove index", protocol.Remove{Tag: protocol.RootChildrenTag, Index: math.MaxInt, Count: 1, RemovedIds: []protocol.Id{1}}},
		{"move from", protocol.Move{Tag: protocol.RootChildrenTag, FromIndex: math.MaxInt, ToIndex: 0, Count: 1}},
		{"move to", protocol.Move{Tag: protocol.RootChildrenTag, FromIndex: 0, ToIndex: math.MaxInt, Count: 1}},
		{"move count", protocol.Move{Tag: protocol.RootChildrenTag, FromIndex: 1, ToIndex: 0, Count: math.MaxInt}},
		{"add index", addToRoot(3, math.MaxInt)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			addTexts(t, f, 2)

			var err error
			require.NotPanics(t, func() {
				err = f.bridge.SendChanges([]protocol.Change{
					protocol.Create{Id: 3, Tag: textTag},
					tt.change,
				})
			})
			require.Error(t, err)
			assert.Equal(t, protocol.ErrCodeIndexOutOfRange, protocol.CodeOf(err))
			assert.False(t, f.bridge.Has(3))
			assert.Equal(t, []protocol.Id{1, 2}, f.root.ids())
		})
	}
}

func TestBridge_RemoveIdMismatch(t *testing.T) {
	f := newFixture()
	addTexts(t, f, 2)

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{2}},
	})
	require.Error(t, err)
	assert.True(t, protocol.IsFormatError(err))
	assert.Equal(t, []protocol.Id{1, 2}, f.root.ids())
}

func TestBridge_IndexErrors(t *testing.T) {
	f := newFixture()
	addTexts(t, f, 1)

	err := f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 2, Tag: textTag},
		addToRoot(2, 5),
	})
	require.Error(t, err)
	assert.Equal(t, protocol.ErrCodeIndexOutOfRange, protocol.CodeOf(err))

	err = f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 1, Count: 1, RemovedIds: []protocol.Id{1}},
	})
	require.Error(t, err)
	assert.Equal(t, protocol.ErrCodeIndexOutOfRange, protocol.CodeOf(err))
}

func TestBridge_AddAlreadyParented(t *testing.T) {
	f := newFixture()
	addTexts(t, f, 1)

	err := f.bridge.SendChanges([]protocol.Change{addToRoot(1, 1)})
	require.Error(t, err)
	assert.Equal(t, "Add attempted to insert widget with ID 1 which already has a parent", err.Error())
}

func TestBridge_Events(t *testing.T) {
	var received []protocol.Event
	f := newFixture(WithEventSink(EventSinkFunc(func(e protocol.Event) error {
		received = append(received, e)
		return nil
	})))
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: buttonTag},
		addToRoot(1, 0),
	}))
	button := f.widget(1)

	require.NoError(t, button.click())
	assert.Equal(t, []protocol.Event{{Id: 1, Tag: clickTag}}, received)

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Remove{Tag: protocol.RootChildrenTag, Index: 0, Count: 1, RemovedIds: []protocol.Id{1}},
	}))
	require.NoError(t, button.click())
	assert.Len(t, received, 1, "events from removed widgets are dropped")
}

func TestBridge_Reset(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		addToRoot(1, 0),
	}))
	row := f.widget(1).slots[rowSlot]

	f.bridge.Reset()
	assert.Equal(t, 0, f.bridge.NodeCount())
	assert.Empty(t, f.root.ids())
	assert.True(t, row.detached)

	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: textTag},
		addToRoot(1, 0),
	}))
	assert.Equal(t, []protocol.Id{1}, f.root.ids())
}

func TestBridge_Fingerprint(t *testing.T) {
	build := func(text string) *Bridge {
		f := newFixture()
		require.NoError(t, f.bridge.SendChanges([]protocol.Change{
			protocol.Create{Id: 1, Tag: rowTag},
			protocol.Create{Id: 2, Tag: textTag},
			protocol.PropertyChange{Id: 2, WidgetTag: textTag, Tag: textProp, Value: protocol.String(text)},
			protocol.ModifierChange{Id: 2, Elements: []protocol.ModifierElement{{Tag: 2, Value: protocol.NewObject(protocol.O("w", protocol.Int(3)))}}},
			protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
			addToRoot(1, 0),
		}))
		return f.bridge
	}

	a, err := build("hello").Fingerprint()
	require.NoError(t, err)
	b, err := build("hello").Fingerprint()
	require.NoError(t, err)
	c, err := build("bye").Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBridge_ShapeHash(t *testing.T) {
	f := newFixture(WithMismatchHandler(&recordingMismatch{}))
	require.NoError(t, f.bridge.SendChanges([]protocol.Change{
		protocol.Create{Id: 1, Tag: rowTag},
		protocol.Create{Id: 2, Tag: textTag},
		protocol.PropertyChange{Id: 2, WidgetTag: textTag, Tag: textProp, Value: protocol.String("a")},
		protocol.Add{Id: 1, Tag: rowSlot, ChildId: 2, Index: 0},
		protocol.Create{Id: 3, Tag: rowTag},
		protocol.Create{Id: 4, Tag: textTag},
		protocol.PropertyChange{Id: 4, WidgetTag: textTag, Tag: textProp, Value: protocol.String("b")},
		protocol.Add{Id: 3, Tag: rowSlot, ChildId: 4, Index: 0},
		protocol.Create{Id: 5, Tag: rowTag},
		protocol.Create{Id: 6, Tag: buttonTag},
		protocol.Add{Id: 5, Tag: rowSlot, ChildId: 6, Index: 0},
		protocol.Create{Id: 7, Tag: 99},
	}))

	assert.NotZero(t, f.bridge.ShapeHash(1))
	assert.Equal(t, f.bridge.ShapeHash(1), f.bridge.ShapeHash(3))
	assert.NotEqual(t, f.bridge.ShapeHash(1), f.bridge.ShapeHash(5))
	assert.Zero(t, f.bridge.ShapeHash(7))
	assert.Zero(t, f.bridge.ShapeHash(42))
}
