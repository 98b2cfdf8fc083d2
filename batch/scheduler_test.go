package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScheduler_KnownNames(t *testing.T) {
	assert.IsType(t, &FCFSScheduler{}, NewScheduler(""))
	assert.IsType(t, &FCFSScheduler{}, NewScheduler("fcfs"))
	assert.IsType(t, &PriorityFCFSScheduler{}, NewScheduler("priority-fcfs"))
	assert.IsType(t, &SJFScheduler{}, NewScheduler("sjf"))
	assert.Panics(t, func() { NewScheduler("bogus") })
}

func TestFCFSScheduler_PreservesOrder(t *testing.T) {
	a := newTestRequest(t, "a", 10, 1)
	b := newTestRequest(t, "b", 5, 1)
	reqs := []*Request{a, b}

	(&FCFSScheduler{}).OrderQueue(reqs, 0)

	assert.Same(t, a, reqs[0])
	assert.Same(t, b, reqs[1])
}

func TestPriorityFCFSScheduler_SortsByPriorityThenID(t *testing.T) {
	a := newTestRequest(t, "a", 10, 1)
	b := newTestRequest(t, "b", 10, 1)
	c := newTestRequest(t, "c", 10, 1)
	a.Priority = 1.0
	b.Priority = 2.0
	c.Priority = 2.0
	reqs := []*Request{a, c, b}

	(&PriorityFCFSScheduler{}).OrderQueue(reqs, 0)

	assert.Equal(t, []string{"b", "c", "a"}, []string{reqs[0].ID, reqs[1].ID, reqs[2].ID})
}

func TestSJFScheduler_ShortestRemainingContextFirst(t *testing.T) {
	long := newTestRequest(t, "long", 100, 1)
	short := newTestRequest(t, "short", 10, 1)
	// A partially processed prompt counts by what remains, not total length
	long.SetContextChunkSize(95)
	long.MoveToNextContextChunk()
	reqs := []*Request{long, short}

	(&SJFScheduler{}).OrderQueue(reqs, 0)

	assert.Same(t, long, reqs[0], "5 remaining beats 10 remaining")
	assert.Same(t, short, reqs[1])
}
