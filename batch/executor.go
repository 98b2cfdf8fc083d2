// Reference per-iteration driver for the request contract. It plays the role
// of the external scheduler: forms a batch under token and request budgets,
// assigns context chunks, steps generation through a pluggable model callback,
// and pauses the newest resident request when the token ledger runs out.
//
// The real forward pass, sampler and KV allocator live outside; ModelStep is
// that boundary.

package batch

import (
	"github.com/sirupsen/logrus"
)

// StepResult carries one iteration's model output for the decode portion of
// the batch, keyed by request ID. Tokens holds exactly one token per beam.
// LogProbs is optional and parallel to Tokens.
type StepResult struct {
	Tokens   map[string][]int
	LogProbs map[string][]float32
}

// ModelStep produces the next token per beam for every request in the decode
// batch. Supplied by the surrounding runtime; the executor never inspects
// logits itself.
type ModelStep func(iteration int64, decode *Batch) StepResult

// ExecutorConfig groups the batching budgets.
type ExecutorConfig struct {
	MaxRunningReqs            int // max requests resident per iteration
	MaxScheduledTokens        int // max total new tokens processed per iteration
	LongPrefillTokenThreshold int // prompts longer than this get chunked (0 = budget-only chunking)
	MaxInputLen               int // cap on promptLen growth during single-beam pause
}

// Executor drives requests through their lifecycle, one RunIteration per
// scheduler step. Single goroutine; no locking.
type Executor struct {
	cfg       ExecutorConfig
	waitQ     *WaitQueue
	running   *Batch
	slots     *SlotManager
	scheduler InstanceScheduler
	streamer  *Streamer
	step      ModelStep

	iteration int64
	completed []*Request
	pauses    int

	// Per-request generated log-prob history, replayed into SetLogProbs each
	// step. Dropped on pause: after resume the storage offset moves and a
	// fresh suffix starts there.
	genLogProbs map[string][][]float32
}

// NewExecutor wires the driver. scheduler may be nil (FCFS); streamer may be
// nil (no result delivery).
func NewExecutor(cfg ExecutorConfig, slots *SlotManager, scheduler InstanceScheduler, streamer *Streamer, step ModelStep) *Executor {
	if step == nil {
		panic("NewExecutor: step must not be nil")
	}
	if scheduler == nil {
		scheduler = &FCFSScheduler{}
	}
	return &Executor{
		cfg:         cfg,
		waitQ:       &WaitQueue{},
		running:     &Batch{},
		slots:       slots,
		scheduler:   scheduler,
		streamer:    streamer,
		step:        step,
		genLogProbs: make(map[string][][]float32),
	}
}

// Submit enqueues a request for admission.
func (e *Executor) Submit(req *Request) {
	e.waitQ.Enqueue(req)
}

// Done reports whether no work remains.
func (e *Executor) Done() bool {
	return e.waitQ.Len() == 0 && e.running.Len() == 0
}

// Iteration returns the number of iterations run so far.
func (e *Executor) Iteration() int64 { return e.iteration }

// Completed returns the finished requests in completion order.
func (e *Executor) Completed() []*Request { return e.completed }

// Pauses returns how many capacity-pressure pauses happened so far.
func (e *Executor) Pauses() int { return e.pauses }

// WaitQueueLen returns the number of requests waiting for admission.
func (e *Executor) WaitQueueLen() int { return e.waitQ.Len() }

// RunningLen returns the number of resident requests.
func (e *Executor) RunningLen() int { return e.running.Len() }

// RunIteration executes one scheduler step: order the wait queue, schedule
// continuing work, admit new requests, execute, deliver results.
func (e *Executor) RunIteration() {
	e.iteration++
	e.waitQ.Reorder(func(reqs []*Request) {
		e.scheduler.OrderQueue(reqs, e.iteration)
	})

	tokenBudget := e.cfg.MaxScheduledTokens
	preempted := false
	var contextWork, decodeWork []*Request

	// Phase 1: continuing requests, in admission order. The snapshot matters:
	// pauseForCapacity may shorten e.running.Requests mid-loop.
	snapshot := append([]*Request{}, e.running.Requests...)
	for _, req := range snapshot {
		if !e.inRunning(req) {
			continue
		}
		if tokenBudget <= 0 {
			logrus.Warnf("[iter %07d] token budget exhausted, deferring remaining requests to next step", e.iteration)
			break
		}
		switch {
		case req.IsContextInitState():
			chunk := e.assignChunk(req, tokenBudget)
			if chunk == 0 {
				continue
			}
			tokenBudget -= chunk
			contextWork = append(contextWork, req)
		case req.IsGenerationInProgressState():
			need := req.Sampling.BeamWidth
			if tokenBudget < need {
				continue
			}
			if !e.slots.Extend(req, need) {
				preempted = true
				if !e.pauseForCapacity(req, need) {
					continue // req itself was paused
				}
			}
			tokenBudget -= need
			decodeWork = append(decodeWork, req)
		}
	}

	// Phase 2: admit waiting requests, unless a pause just signalled pressure.
	for e.running.Len() < e.cfg.MaxRunningReqs && e.waitQ.Len() > 0 && tokenBudget > 0 && !preempted {
		head := e.waitQ.Peek()
		if !e.slots.Acquire(head) {
			break
		}
		e.waitQ.Dequeue()
		e.running.Requests = append(e.running.Requests, head)
		chunk := e.assignChunk(head, tokenBudget)
		if chunk > 0 {
			tokenBudget -= chunk
			contextWork = append(contextWork, head)
		}
	}

	// Execute context chunks: the kernel consumed [position, position+chunk),
	// so advance the cursor; the full prompt consumed means generation starts.
	// Requests paused by pauseForCapacity after their chunk was assigned had
	// their cursor reset and must not advance.
	for _, req := range contextWork {
		if !e.inRunning(req) {
			continue
		}
		wasLast := req.IsLastContextChunk()
		req.MoveToNextContextChunk()
		if wasLast {
			req.SetState(StateGenerationInProgress)
		}
	}

	// Execute one decode step for requests that survived capacity checks.
	live := decodeWork[:0]
	for _, req := range decodeWork {
		if e.inRunning(req) {
			live = append(live, req)
		}
	}
	if len(live) > 0 {
		e.applyStep(live, e.step(e.iteration, NewBatch(live)))
	}

	// Deliver partial results for streaming requests still in flight.
	if e.streamer != nil {
		for _, req := range e.running.Requests {
			if req.Streaming && req.IsGenerationInProgressState() {
				if err := e.streamer.Flush(req); err != nil {
					logrus.Errorf("[iter %07d] stream flush failed for %s: %v", e.iteration, req.ID, err)
				}
			}
		}
	}
}

// assignChunk picks the next context chunk size for req within budget and
// records it on the cursor. A prompt that fits the budget whole and was never
// chunked stays on the full-context fast path. Returns 0 when the budget is
// gone and the request must wait.
func (e *Executor) assignChunk(req *Request, tokenBudget int) int {
	remaining := req.ContextRemainingLength()
	chunk := remaining
	if threshold := e.cfg.LongPrefillTokenThreshold; threshold > 0 && threshold < chunk {
		chunk = threshold
	}
	chunk = min(chunk, tokenBudget)
	if chunk <= 0 {
		return 0
	}
	if req.IsFullContextRequest() && chunk == remaining {
		return chunk // unchunked single shot
	}
	req.SetContextChunkSize(chunk)
	return chunk
}

// applyStep records model output onto the requests and retires the finished
// ones.
func (e *Executor) applyStep(reqs []*Request, result StepResult) {
	for _, req := range reqs {
		tokens, ok := result.Tokens[req.ID]
		if !ok {
			logrus.Panicf("model step returned no tokens for request %s", req.ID)
		}
		req.AddNewTokens(tokens)

		if req.ReturnLogProbs() {
			if stepLogProbs, ok := result.LogProbs[req.ID]; ok {
				e.recordLogProbs(req, stepLogProbs)
			}
		}

		if e.stopConditionReached(req) {
			e.complete(req)
		}
	}
}

// recordLogProbs replays the full generated log-prob history through
// SetLogProbs, which stores it at offset promptLen - origPromptLen.
func (e *Executor) recordLogProbs(req *Request, stepLogProbs []float32) {
	history := e.genLogProbs[req.ID]
	if history == nil {
		history = make([][]float32, req.Sampling.BeamWidth)
	}
	for beam := 0; beam < req.Sampling.BeamWidth; beam++ {
		history[beam] = append(history[beam], stepLogProbs[beam])
		req.SetLogProbs(history[beam], beam)
		req.SetCumLogProb(req.CumLogProbs()[beam]+stepLogProbs[beam], beam)
	}
	e.genLogProbs[req.ID] = history
}

// stopConditionReached checks the length budget and the end token. The
// decision is external to the Request by design.
func (e *Executor) stopConditionReached(req *Request) bool {
	if req.MaxNumGeneratedTokens() >= req.MaxNewTokens() {
		return true
	}
	if req.EndID == nil {
		return false
	}
	for beam := 0; beam < req.Sampling.BeamWidth; beam++ {
		seq := req.Tokens(beam)
		if len(seq) == 0 || seq[len(seq)-1] != *req.EndID {
			return false
		}
	}
	return true
}

func (e *Executor) complete(req *Request) {
	req.SetState(StateGenerationComplete)
	if e.streamer != nil {
		if err := e.streamer.FlushFinal(req); err != nil {
			logrus.Errorf("[iter %07d] final flush failed for %s: %v", e.iteration, req.ID, err)
		}
	}
	e.slots.Release(req)
	e.running.Remove(req)
	delete(e.genLogProbs, req.ID)
	e.completed = append(e.completed, req)
	logrus.Debugf("[iter %07d] request %s complete after %d generated tokens",
		e.iteration, req.ID, req.MaxNumGeneratedTokens())
}

// pauseForCapacity evicts resident requests from the batch tail until req's
// reservation can grow by need tokens. Returns false when req itself was the
// last one standing and got paused too.
func (e *Executor) pauseForCapacity(req *Request, need int) bool {
	for {
		victim := e.running.Requests[len(e.running.Requests)-1]
		e.pauseRequest(victim)
		if victim == req {
			return false
		}
		if e.slots.Extend(req, need) {
			return true
		}
	}
}

// pauseRequest releases the victim's slot and reservation, resets it to the
// context phase, and parks it at the head of the wait queue.
func (e *Executor) pauseRequest(victim *Request) {
	logrus.Warnf("[iter %07d] pause: evicting %s to reclaim capacity", e.iteration, victim.ID)
	e.slots.Release(victim)
	victim.Pause(e.cfg.MaxInputLen)
	e.running.Remove(victim)
	e.waitQ.PrependFront(victim)
	delete(e.genLogProbs, victim.ID)
	e.pauses++
}

func (e *Executor) inRunning(req *Request) bool {
	for _, r := range e.running.Requests {
		if r == req {
			return true
		}
	}
	return false
}
