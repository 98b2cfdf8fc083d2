package batch

import (
	"fmt"
	"sort"
)

// InstanceScheduler reorders the wait queue before admission each iteration,
// deciding which waiting requests get an execution slot first.
// Implementations sort the slice in-place using sort.SliceStable for
// determinism.
type InstanceScheduler interface {
	OrderQueue(requests []*Request, iteration int64)
}

// FCFSScheduler preserves First-Come-First-Served order (no-op). This is the
// default: paused requests stay at the head where PrependFront put them.
type FCFSScheduler struct{}

func (f *FCFSScheduler) OrderQueue(_ []*Request, _ int64) {
	// No-op: FIFO order preserved from enqueue order
}

// PriorityFCFSScheduler sorts requests by priority (descending), then by ID
// (ascending) for determinism.
type PriorityFCFSScheduler struct{}

func (p *PriorityFCFSScheduler) OrderQueue(reqs []*Request, _ int64) {
	// Float != comparison is safe here: priority policies produce exact
	// arithmetic. Revisit if a policy uses division/log.
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].Priority != reqs[j].Priority {
			return reqs[i].Priority > reqs[j].Priority
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// SJFScheduler sorts requests by remaining context length (ascending,
// shortest first), then by ID (ascending) for determinism.
// Warning: SJF can cause starvation for long prompts under sustained load.
type SJFScheduler struct{}

func (s *SJFScheduler) OrderQueue(reqs []*Request, _ int64) {
	sort.SliceStable(reqs, func(i, j int) bool {
		li, lj := reqs[i].ContextRemainingLength(), reqs[j].ContextRemainingLength()
		if li != lj {
			return li < lj
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// NewScheduler creates an InstanceScheduler by name.
// Valid names: "fcfs" (default), "priority-fcfs", "sjf".
// Empty string defaults to FCFSScheduler (for CLI flag default compatibility).
// Panics on unrecognized names.
func NewScheduler(name string) InstanceScheduler {
	switch name {
	case "", "fcfs":
		return &FCFSScheduler{}
	case "priority-fcfs":
		return &PriorityFCFSScheduler{}
	case "sjf":
		return &SJFScheduler{}
	default:
		panic(fmt.Sprintf("unknown scheduler %q", name))
	}
}
