// Optional side buffers carried through the pipeline: embedding bias,
// forbidden/stop word lists, prompt-tuning table, adapter weights, and
// captured logits. Buffers are tensor.Tensor handles with explicit residency;
// migration to device memory happens through a caller-supplied BufferManager
// before device-side computation consumes the buffer.

package batch

import (
	"github.com/pkg/errors"

	"github.com/llmbatch/llmbatch/tensor"
)

// PromptTuning combines the prompt-tuning embedding table with its virtual
// vocab size. Modeling the pair as one value makes the inconsistent
// table-without-vocab-size state unrepresentable.
type PromptTuning struct {
	table     *tensor.Tensor
	vocabSize int
}

// NewPromptTuning validates and builds the paired value.
func NewPromptTuning(table *tensor.Tensor, vocabSize int) (*PromptTuning, error) {
	if table == nil {
		return nil, errors.New("prompt tuning: embedding table must not be nil")
	}
	if vocabSize <= 0 {
		return nil, errors.Errorf("prompt tuning: vocab size %d, must be > 0", vocabSize)
	}
	return &PromptTuning{table: table, vocabSize: vocabSize}, nil
}

// Table returns the embedding table.
func (pt *PromptTuning) Table() *tensor.Tensor { return pt.table }

// VocabSize returns the virtual vocab size matching the table.
func (pt *PromptTuning) VocabSize() int { return pt.vocabSize }

// Attachments groups the optional side buffers of one request.
type Attachments struct {
	embeddingBias *tensor.Tensor
	badWordsList  *tensor.Tensor
	stopWordsList *tensor.Tensor
	promptTuning  *PromptTuning
	loraWeights   *tensor.Tensor
	loraConfig    *tensor.Tensor

	// Captured logits. The device-side buffers are written by the forward
	// pass; the host mirrors are filled by the runtime when the caller asked
	// for logits back.
	contextLogits        *tensor.Tensor // [promptLen, vocabSizePadded]
	contextLogitsHost    *tensor.Tensor
	generationLogits     *tensor.Tensor // [beamWidth, maxNewTokens, vocabSizePadded]
	generationLogitsHost *tensor.Tensor

	// Per-step generation-logits fragments, accumulated during streaming and
	// concatenated by the caller.
	generationLogitsFragments []*tensor.Tensor
}

// EmbeddingBias returns the additive logit bias buffer, nil when absent.
func (req *Request) EmbeddingBias() *tensor.Tensor { return req.attach.embeddingBias }

// BadWordsList returns the forbidden-word list buffer, nil when absent.
func (req *Request) BadWordsList() *tensor.Tensor { return req.attach.badWordsList }

// StopWordsList returns the stop-word list buffer, nil when absent.
func (req *Request) StopWordsList() *tensor.Tensor { return req.attach.stopWordsList }

// PromptTuning returns the paired prompt-tuning value, nil when absent.
func (req *Request) PromptTuning() *PromptTuning { return req.attach.promptTuning }

// LoraWeights returns the adapter weights buffer, nil when absent.
func (req *Request) LoraWeights() *tensor.Tensor { return req.attach.loraWeights }

// LoraConfig returns the adapter config buffer, nil when absent.
func (req *Request) LoraConfig() *tensor.Tensor { return req.attach.loraConfig }

// ContextLogits returns the captured context-phase logits.
func (req *Request) ContextLogits() *tensor.Tensor { return req.attach.contextLogits }

// SetContextLogits records the context-phase logits buffer.
func (req *Request) SetContextLogits(t *tensor.Tensor) { req.attach.contextLogits = t }

// ContextLogitsHost returns the host mirror of the context-phase logits.
func (req *Request) ContextLogitsHost() *tensor.Tensor { return req.attach.contextLogitsHost }

// SetContextLogitsHost records the host mirror of the context-phase logits.
func (req *Request) SetContextLogitsHost(t *tensor.Tensor) { req.attach.contextLogitsHost = t }

// GenerationLogits returns the captured generation-phase logits.
func (req *Request) GenerationLogits() *tensor.Tensor { return req.attach.generationLogits }

// SetGenerationLogits records the generation-phase logits buffer.
func (req *Request) SetGenerationLogits(t *tensor.Tensor) { req.attach.generationLogits = t }

// GenerationLogitsHost returns the host mirror of the generation-phase logits.
func (req *Request) GenerationLogitsHost() *tensor.Tensor { return req.attach.generationLogitsHost }

// SetGenerationLogitsHost records the host mirror of the generation-phase logits.
func (req *Request) SetGenerationLogitsHost(t *tensor.Tensor) { req.attach.generationLogitsHost = t }

// GenerationLogitsFragments returns the accumulated per-step fragments in
// arrival order. The caller concatenates them.
func (req *Request) GenerationLogitsFragments() []*tensor.Tensor {
	return req.attach.generationLogitsFragments
}

// AddGenerationFragment appends one per-step generation-logits fragment.
func (req *Request) AddGenerationFragment(genLogits *tensor.Tensor) {
	req.attach.generationLogitsFragments = append(req.attach.generationLogitsFragments, genLogits)
}

// GenerationLogitsFragmentsSize returns the number of accumulated fragments.
func (req *Request) GenerationLogitsFragmentsSize() int {
	return len(req.attach.generationLogitsFragments)
}

// ClearGenerationLogitsFragments drops all accumulated fragments.
func (req *Request) ClearGenerationLogitsFragments() {
	req.attach.generationLogitsFragments = nil
}

// MovePromptTuningToDevice migrates the prompt-tuning embedding table to
// device memory on the manager's execution stream. No-op when the table is
// absent or already device-resident. Must run before the table is consumed by
// device-side computation.
func (req *Request) MovePromptTuningToDevice(manager *tensor.BufferManager) {
	if req.attach.promptTuning == nil {
		return
	}
	req.attach.promptTuning.table = manager.CopyToDevice(req.attach.promptTuning.table)
}

// MoveLoraWeightsToDevice migrates the adapter weights to device memory on the
// manager's execution stream. No-op when absent or already device-resident.
func (req *Request) MoveLoraWeightsToDevice(manager *tensor.BufferManager) {
	if req.attach.loraWeights == nil {
		return
	}
	req.attach.loraWeights = manager.CopyToDevice(req.attach.loraWeights)
}
