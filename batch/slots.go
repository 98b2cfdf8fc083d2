// Execution-slot pool and token-capacity ledger: the memory-manager side of
// the request contract. It plans capacity from the request's sizing accessors
// (MaxBeamNumTokens, ContextRemainingLength, MaxNumGeneratedTokens) and forces
// Pause through the executor when the ledger runs out. Physical block
// allocation happens elsewhere; this tracks counts only.

package batch

import "fmt"

// SlotManager owns a fixed pool of execution slots plus a token-capacity
// budget shared by all resident requests.
type SlotManager struct {
	numSlots      int
	tokenCapacity int
	inUse         []bool         // slot id -> occupied
	reserved      map[string]int // request ID -> tokens reserved
	usedTokens    int            // total reserved tokens (tracked incrementally)
}

// NewSlotManager builds a pool with numSlots execution slots and a shared
// budget of tokenCapacity tokens.
func NewSlotManager(numSlots, tokenCapacity int) *SlotManager {
	if numSlots <= 0 || tokenCapacity <= 0 {
		panic(fmt.Sprintf("SlotManager: numSlots %d and tokenCapacity %d must be positive", numSlots, tokenCapacity))
	}
	return &SlotManager{
		numSlots:      numSlots,
		tokenCapacity: tokenCapacity,
		inUse:         make([]bool, numSlots),
		reserved:      make(map[string]int),
	}
}

// footprint is the token count a resident request occupies right now: every
// beam stores prompt + generated tokens.
func footprint(req *Request) int {
	return req.Sampling.BeamWidth * req.MaxBeamNumTokens()
}

// FreeSlots returns the number of unassigned execution slots.
func (sm *SlotManager) FreeSlots() int {
	free := 0
	for _, used := range sm.inUse {
		if !used {
			free++
		}
	}
	return free
}

// FreeTokens returns the unreserved remainder of the token budget.
func (sm *SlotManager) FreeTokens() int {
	return sm.tokenCapacity - sm.usedTokens
}

// CanFit reports whether the request's current footprint fits the remaining
// budget and a slot is available.
func (sm *SlotManager) CanFit(req *Request) bool {
	return sm.FreeSlots() > 0 && footprint(req) <= sm.FreeTokens()
}

// Acquire assigns the lowest free slot id to the request and reserves its
// current footprint. Returns false, leaving the request untouched, when
// nothing fits.
func (sm *SlotManager) Acquire(req *Request) bool {
	if _, ok := sm.reserved[req.ID]; ok {
		panic(fmt.Sprintf("SlotManager: request %s already holds a slot", req.ID))
	}
	if !sm.CanFit(req) {
		return false
	}
	for slot := 0; slot < sm.numSlots; slot++ {
		if !sm.inUse[slot] {
			sm.inUse[slot] = true
			need := footprint(req)
			sm.reserved[req.ID] = need
			sm.usedTokens += need
			req.SetExecutionSlot(slot)
			return true
		}
	}
	return false
}

// Extend grows the request's reservation by n tokens (one generation step
// reserves beamWidth tokens). Returns false on budget exhaustion; the caller
// decides who pauses.
func (sm *SlotManager) Extend(req *Request, n int) bool {
	if _, ok := sm.reserved[req.ID]; !ok {
		panic(fmt.Sprintf("SlotManager: Extend on request %s without a reservation", req.ID))
	}
	if sm.usedTokens+n > sm.tokenCapacity {
		return false
	}
	sm.reserved[req.ID] += n
	sm.usedTokens += n
	return true
}

// Release frees the request's slot and reservation. Must run before Pause
// clears the slot handle. No-op for a request with no reservation.
func (sm *SlotManager) Release(req *Request) {
	need, ok := sm.reserved[req.ID]
	if !ok {
		return
	}
	delete(sm.reserved, req.ID)
	sm.usedTokens -= need
	slot := req.ExecutionSlot()
	if slot != UnassignedSlot {
		sm.inUse[slot] = false
	}
}
