// batch.go
//
// Defines the Batch struct which represents the group of requests processed
// together in a single iteration (one forward pass of the model).

package batch

// Batch holds the requests admitted to the current iteration, in admission
// order. The newest request sits at the tail; the pause policy evicts from
// there.
type Batch struct {
	Requests []*Request
}

// NewBatch creates a new Batch instance from a given slice of requests.
func NewBatch(reqs []*Request) *Batch {
	return &Batch{Requests: reqs}
}

// Len returns the number of requests in the batch.
func (b *Batch) Len() int {
	return len(b.Requests)
}

// Remove drops a request from the batch, preserving order. Returns false when
// the request is not in the batch.
func (b *Batch) Remove(req *Request) bool {
	for i, r := range b.Requests {
		if r == req {
			b.Requests = append(b.Requests[:i], b.Requests[i+1:]...)
			return true
		}
	}
	return false
}
