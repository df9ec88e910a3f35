package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	for _, p := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(&job{payload: []byte(p)}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, string(j.payload))
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestJobQueue_SignalsOnEnqueue(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(&job{})
	q.Enqueue(&job{})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	// Signals coalesce.
	select {
	case <-q.Wait():
		t.Fatal("second signal was not coalesced")
	default:
	}
}

func TestJobQueue_Close(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(&job{})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(&job{}), "enqueue after close should fail")
	assert.False(t, q.Drained(), "queued jobs survive close")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue should wake waiters")
	}
}
