package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotChangeList_AllowsBuildingChanges(t *testing.T) {
	changes := []Change{
		Create{Id: 1, Tag: 2},
		PropertyChange{Id: 1, WidgetTag: 2, Tag: 1, Value: String("hi")},
		ModifierChange{Id: 1, Elements: []ModifierElement{{Tag: 1}}},
		Add{Id: 0, Tag: 1, ChildId: 1, Index: 0},
	}

	s, err := NewSnapshotChangeList(changes)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, changes, s.Changes())
}

func TestNewSnapshotChangeList_ListsEveryOffender(t *testing.T) {
	_, err := NewSnapshotChangeList([]Change{
		Create{Id: 1, Tag: 2},
		Move{Id: 1, Tag: 2, FromIndex: 3, ToIndex: 4, Count: 5},
		Add{Id: 0, Tag: 1, ChildId: 1, Index: 0},
		Remove{Id: 1, Tag: 2, Index: 3, Count: 1, RemovedIds: []Id{4}},
	})
	require.Error(t, err)
	assert.Equal(t, ErrCodeSnapshotMutation, CodeOf(err))
	assert.Equal(t, `Snapshot change list cannot contain move or remove operations

Found:
 - Move(id=1, tag=2, fromIndex=3, toIndex=4, count=5)
 - Remove(id=1, tag=2, index=3, count=1, removedIds=[4])`, err.Error())
}

func TestSnapshotChangeList_JSON(t *testing.T) {
	s, err := NewSnapshotChangeList([]Change{Create{Id: 1, Tag: 2}, Add{Id: 0, Tag: 1, ChildId: 1, Index: 0}})
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"create","id":1,"tag":2},{"type":"add","id":0,"tag":1,"childId":1,"index":0}]`, string(data))

	var decoded SnapshotChangeList
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Changes(), decoded.Changes())
}

func TestSnapshotChangeList_UnmarshalRejectsMove(t *testing.T) {
	var s SnapshotChangeList
	err := json.Unmarshal([]byte(`[{"type":"move","id":1,"tag":2,"fromIndex":0,"toIndex":1,"count":1}]`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot contain move or remove")
}
