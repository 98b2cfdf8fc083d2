package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitQueue_FIFOOrder(t *testing.T) {
	wq := &WaitQueue{}
	a := newTestRequest(t, "a", 4, 1)
	b := newTestRequest(t, "b", 4, 1)

	wq.Enqueue(a)
	wq.Enqueue(b)

	assert.Equal(t, 2, wq.Len())
	assert.Same(t, a, wq.Peek())
	assert.Same(t, a, wq.Dequeue())
	assert.Same(t, b, wq.Dequeue())
	assert.Nil(t, wq.Dequeue())
	assert.Nil(t, wq.Peek())
}

func TestWaitQueue_PrependFront_PausedRequestResumesFirst(t *testing.T) {
	wq := &WaitQueue{}
	wq.Enqueue(newTestRequest(t, "a", 4, 1))
	paused := newTestRequest(t, "paused", 4, 1)

	wq.PrependFront(paused)

	assert.Same(t, paused, wq.Peek())
	assert.Panics(t, func() { wq.PrependFront(nil) })
}

func TestWaitQueue_Reorder(t *testing.T) {
	wq := &WaitQueue{}
	a := newTestRequest(t, "a", 4, 1)
	b := newTestRequest(t, "b", 4, 1)
	wq.Enqueue(a)
	wq.Enqueue(b)

	wq.Reorder(func(reqs []*Request) {
		reqs[0], reqs[1] = reqs[1], reqs[0]
	})
	require.Same(t, b, wq.Peek())

	assert.Panics(t, func() { wq.Reorder(nil) })
	assert.Panics(t, func() {
		wq.Reorder(func(reqs []*Request) {
			wq.queue = wq.queue[:1]
		})
	})
}

func TestWaitQueue_Items_ExposesContentsInOrder(t *testing.T) {
	wq := &WaitQueue{}
	a := newTestRequest(t, "a", 4, 1)
	b := newTestRequest(t, "b", 4, 1)
	wq.Enqueue(a)
	wq.Enqueue(b)

	items := wq.Items()
	require.Len(t, items, 2)
	assert.Same(t, a, items[0])
	assert.Same(t, b, items[1])
}

func TestWaitQueue_String(t *testing.T) {
	wq := &WaitQueue{}
	wq.Enqueue(newTestRequest(t, "a", 4, 1))
	wq.Enqueue(newTestRequest(t, "b", 4, 1))
	assert.Equal(t, "[a b]", wq.String())
}
