// Defines the Request struct that tracks an individual generation request
// through the context (prompt) and generation phases under continuous
// batching. This is the bookkeeping object shared between the scheduler, the
// result streamer and the memory manager; arithmetic mistakes here corrupt
// generated text silently, so the mutation surface is kept deliberately small.

package batch

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/llmbatch/llmbatch/tensor"
)

// RequestState represents the lifecycle state of a request.
type RequestState string

const (
	// StateUnknown is the zero value. NewRequest never produces it; it only
	// shows up on a Request that was never constructed properly.
	StateUnknown              RequestState = ""
	StateContextInit          RequestState = "context_init"
	StateGenerationInProgress RequestState = "generation_in_progress"
	StateGenerationComplete   RequestState = "generation_complete"
)

// UnassignedSlot marks a request that currently holds no execution slot.
const UnassignedSlot = -1

// RequestConfig carries the optional construction inputs for NewRequest.
// The zero value is a plain non-streaming request with no attachments.
type RequestConfig struct {
	Streaming      bool // stream partial results to the caller
	ReturnLogProbs bool // record per-token log-probabilities
	EndID          *int // end-of-sequence token id (nil = none)
	PadID          *int // padding token id (nil = none)

	EmbeddingBias *tensor.Tensor // [vocabSize] additive logit bias
	BadWordsList  *tensor.Tensor // banned token sequences
	StopWordsList *tensor.Tensor // stop token sequences
	PromptTuning  *PromptTuning  // embedding table + vocab size, both-or-neither
	LoraWeights   *tensor.Tensor // adapter weights
	LoraConfig    *tensor.Tensor // adapter configuration

	DraftTokens []int          // speculative-decoding candidates
	DraftLogits *tensor.Tensor // logits for DraftTokens; requires DraftTokens
}

// Request tracks one generation request. All mutation happens from the single
// scheduling goroutine that owns the current batch iteration; the type does no
// internal locking.
type Request struct {
	ID        string         // unique identifier, fixed at construction
	Sampling  SamplingConfig // sampling parameters, fixed at construction
	Streaming bool           // whether partial results are streamed
	EndID     *int           // optional end-of-sequence token id
	PadID     *int           // optional padding token id

	// Priority is a scheduling hint recomputed by the external policy each
	// iteration. Higher = more urgent. Only meaningful for queued requests.
	Priority float64

	returnLogProbs bool
	promptLen      int // current prompt length; grows only through Pause
	origPromptLen  int // prompt length at construction, never changes
	maxNewTokens   int // remaining new-token budget; shrinks on single-beam Pause
	state          RequestState
	executionSlot  int // scheduler-assigned handle, UnassignedSlot when parked

	// maxSentTokenPos is the highest token position already delivered to the
	// caller. Owned by the result-streaming layer via SetMaxSentTokenPos; the
	// request never re-derives it.
	maxSentTokenPos int

	cursor contextCursor
	beams  beamStore
	draft  draftAttachment
	attach Attachments
}

// NewRequest validates the construction contract and returns a request in
// StateContextInit. Construction errors are not retryable; the caller must fix
// its inputs.
func NewRequest(id string, maxNewTokens int, inputTokens []int, sampling SamplingConfig, cfg RequestConfig) (*Request, error) {
	if id == "" {
		return nil, errors.New("request id must not be empty")
	}
	if len(inputTokens) == 0 {
		return nil, errors.Errorf("request %s: prompt must not be empty", id)
	}
	if sampling.BeamWidth < 1 {
		return nil, errors.Errorf("request %s: beam width %d, must be >= 1", id, sampling.BeamWidth)
	}
	if maxNewTokens < 1 {
		return nil, errors.Errorf("request %s: max new tokens %d, must be >= 1", id, maxNewTokens)
	}
	if cfg.DraftLogits != nil && len(cfg.DraftTokens) == 0 {
		return nil, errors.Errorf("request %s: draft tokens must be specified when draft logits are given", id)
	}

	req := &Request{
		ID:              id,
		Sampling:        sampling,
		Streaming:       cfg.Streaming,
		EndID:           cfg.EndID,
		PadID:           cfg.PadID,
		returnLogProbs:  cfg.ReturnLogProbs,
		promptLen:       len(inputTokens),
		origPromptLen:   len(inputTokens),
		maxNewTokens:    maxNewTokens,
		state:           StateContextInit,
		executionSlot:   UnassignedSlot,
		maxSentTokenPos: len(inputTokens) - 1,
		beams:           newBeamStore(sampling.BeamWidth, inputTokens),
		draft: draftAttachment{
			tokens: append([]int{}, cfg.DraftTokens...),
			logits: cfg.DraftLogits,
		},
		attach: Attachments{
			embeddingBias: cfg.EmbeddingBias,
			badWordsList:  cfg.BadWordsList,
			stopWordsList: cfg.StopWordsList,
			promptTuning:  cfg.PromptTuning,
			loraWeights:   cfg.LoraWeights,
			loraConfig:    cfg.LoraConfig,
		},
	}
	return req, nil
}

// State returns the current lifecycle state.
func (req *Request) State() RequestState { return req.state }

// SetState applies an external lifecycle transition. The scheduler moves a
// request to StateGenerationInProgress once the chunk cursor has consumed the
// full prompt, and to StateGenerationComplete when a stop condition fires.
func (req *Request) SetState(s RequestState) { req.state = s }

func (req *Request) IsContextInitState() bool {
	return req.state == StateContextInit
}

func (req *Request) IsGenerationInProgressState() bool {
	return req.state == StateGenerationInProgress
}

func (req *Request) IsGenerationCompleteState() bool {
	return req.state == StateGenerationComplete
}

// PromptLen returns the current prompt length. It exceeds OrigPromptLen after
// a single-beam pause reclassified generated tokens as prompt.
func (req *Request) PromptLen() int { return req.promptLen }

// OrigPromptLen returns the prompt length at construction.
func (req *Request) OrigPromptLen() int { return req.origPromptLen }

// MaxNewTokens returns the remaining new-token budget.
func (req *Request) MaxNewTokens() int { return req.maxNewTokens }

// ReturnLogProbs reports whether the request records log-probabilities.
func (req *Request) ReturnLogProbs() bool { return req.returnLogProbs }

// ExecutionSlot returns the scheduler-assigned slot handle, or UnassignedSlot.
func (req *Request) ExecutionSlot() int { return req.executionSlot }

// SetExecutionSlot records the slot handle assigned by the slot manager.
func (req *Request) SetExecutionSlot(slot int) { req.executionSlot = slot }

// MaxSentTokenPos returns the highest token position already delivered to the
// caller.
func (req *Request) MaxSentTokenPos() int { return req.maxSentTokenPos }

// SetMaxSentTokenPos records the highest delivered token position. Called by
// the result-streaming layer after a successful flush, never by the request
// itself.
func (req *Request) SetMaxSentTokenPos(pos int) { req.maxSentTokenPos = pos }

// Pause evicts the request back to the context phase so its working set can be
// reclaimed, preserving as much progress as the data model allows.
//
// Single beam: trailing generated tokens are reclassified as prompt tokens, up
// to maxInputLen, and the new-token budget shrinks by the amount preserved.
// Multi beam: every beam is truncated back to the current prompt length and
// all generated tokens and log-probs are discarded; there is no cross-beam
// swap support to preserve them.
//
// Both paths reset the chunk cursor and release the execution slot. The caller
// must re-assign a slot after resume.
func (req *Request) Pause(maxInputLen int) {
	if req.Sampling.BeamWidth > 1 {
		req.beams.truncateAll(req.promptLen, req.returnLogProbs)
	} else {
		newPromptLen := min(maxInputLen, req.promptLen+req.MaxNumGeneratedTokens())
		logrus.Debugf("pause: id %s, promptLen %d, newPromptLen %d", req.ID, req.promptLen, newPromptLen)
		pad := 0
		if req.PadID != nil {
			pad = *req.PadID
		}
		req.beams.resizeAll(newPromptLen, pad)
		if req.returnLogProbs {
			req.beams.resizeLogProbs(newPromptLen - req.promptLen)
		}
		req.maxNewTokens -= newPromptLen - req.promptLen
		req.promptLen = newPromptLen
	}
	req.state = StateContextInit
	req.cursor.reset()
	req.executionSlot = UnassignedSlot
}

// This method returns a human-readable string representation of a Request.
func (req *Request) String() string {
	return fmt.Sprintf("Request: (ID: %s, State: %s, PromptLen: %d, MaxBeamNumTokens: %d)",
		req.ID, req.state, req.promptLen, req.MaxBeamNumTokens())
}
