// Implements the WaitQueue, which holds requests waiting for an execution
// slot: new arrivals and requests paused under capacity pressure.

package batch

import (
	"fmt"
	"strings"
)

// WaitQueue is a FIFO queue of requests waiting to be scheduled for
// execution. Paused requests re-enter at the front so they resume before new
// arrivals.
type WaitQueue struct {
	queue []*Request
}

// Enqueue adds a request to the back of the wait queue.
func (wq *WaitQueue) Enqueue(req *Request) {
	wq.queue = append(wq.queue, req)
}

// Len returns the number of requests in the queue.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Peek returns the request at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Peek() *Request {
	if len(wq.queue) == 0 {
		return nil
	}
	return wq.queue[0]
}

// Dequeue removes and returns the request at the front of the queue, or nil
// when empty.
func (wq *WaitQueue) Dequeue() *Request {
	if len(wq.queue) == 0 {
		return nil
	}
	req := wq.queue[0]
	wq.queue = wq.queue[1:]
	return req
}

// PrependFront inserts a request at the front of the queue. Used on pause: a
// request evicted from the running batch goes back to the head for immediate
// rescheduling once capacity frees up.
func (wq *WaitQueue) PrependFront(req *Request) {
	if req == nil {
		panic("PrependFront: req must not be nil")
	}
	wq.queue = append([]*Request{req}, wq.queue...)
}

// Items returns the queue contents for iteration. The returned slice is the
// queue's internal storage -- callers may iterate over it but MUST NOT append
// to or reslice it. For reordering, use Reorder() instead.
func (wq *WaitQueue) Items() []*Request {
	return wq.queue
}

// Reorder applies fn to the queue contents, allowing in-place reordering.
// The InstanceScheduler.OrderQueue method is the primary consumer:
//
//	wq.Reorder(func(reqs []*Request) {
//	    scheduler.OrderQueue(reqs, iteration)
//	})
//
// fn receives the underlying slice and may sort it in-place.
// fn MUST NOT change the slice length (no append/delete).
func (wq *WaitQueue) Reorder(fn func([]*Request)) {
	if fn == nil {
		panic("Reorder: fn must not be nil")
	}
	n := len(wq.queue)
	fn(wq.queue)
	if len(wq.queue) != n {
		panic(fmt.Sprintf("Reorder: fn changed queue length from %d to %d", n, len(wq.queue)))
	}
}

func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, req := range wq.queue {
		sb.WriteString(req.ID)
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
