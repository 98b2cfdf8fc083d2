// Speculative-decoding draft attachment: candidate future tokens proposed by
// an auxiliary process and verified in bulk by the main generation step, with
// an optional matching logits buffer.

package batch

import "github.com/llmbatch/llmbatch/tensor"

// draftAttachment pairs the draft token candidates with their optional logits.
// Logits without tokens is rejected at construction; tokens without logits is
// valid. Replacement is whole-value: callers that need the previous candidates
// keep their own copy before replacing.
type draftAttachment struct {
	tokens []int
	logits *tensor.Tensor
}

// DraftTokens returns the current draft token candidates. The slice is the
// request's internal storage; take a snapshot before calling SetDraftTokens.
func (req *Request) DraftTokens() []int {
	return req.draft.tokens
}

// SetDraftTokens replaces the draft token candidates.
func (req *Request) SetDraftTokens(draftTokens []int) {
	req.draft.tokens = draftTokens
}

// HasDraftTokens reports whether any draft candidates are attached.
func (req *Request) HasDraftTokens() bool {
	return len(req.draft.tokens) > 0
}

// DraftLogits returns the logits for the draft tokens, nil when absent.
func (req *Request) DraftLogits() *tensor.Tensor {
	return req.draft.logits
}

// SetDraftLogits replaces the draft logits buffer.
func (req *Request) SetDraftLogits(draftLogits *tensor.Tensor) {
	req.draft.logits = draftLogits
}
