// Per-beam token and log-probability storage. The prompt is replicated across
// all beams at construction and every beam grows in lockstep afterwards: the
// bulk append takes exactly beamWidth tokens, and rollback goes through
// SetGeneratedTokens or Pause only.

package batch

import "fmt"

// beamStore holds beamWidth token sequences, the matching log-prob sequences,
// and one cumulative log-prob scalar per beam.
type beamStore struct {
	tokens      [][]int     // [beamWidth][promptLen + generated]
	logProbs    [][]float32 // [beamWidth][generated], offset by promptLen - origPromptLen
	cumLogProbs []float32   // [beamWidth], overwritten per update
}

func newBeamStore(beamWidth int, inputTokens []int) beamStore {
	tokens := make([][]int, beamWidth)
	for beam := range tokens {
		tokens[beam] = append([]int{}, inputTokens...)
	}
	return beamStore{
		tokens:      tokens,
		logProbs:    make([][]float32, beamWidth),
		cumLogProbs: make([]float32, beamWidth),
	}
}

// truncateAll cuts every beam back to promptLen, discarding generated tokens
// and, when log-probs are recorded, the log-prob sequences. Multi-beam pause
// path.
func (bs *beamStore) truncateAll(promptLen int, returnLogProbs bool) {
	for beam := range bs.tokens {
		bs.tokens[beam] = bs.tokens[beam][:promptLen]
		if returnLogProbs {
			bs.logProbs[beam] = bs.logProbs[beam][:0]
		}
	}
}

// resizeAll truncates or pad-extends every beam to newLen. Single-beam pause
// path, where generated tokens are being reclassified as prompt.
func (bs *beamStore) resizeAll(newLen, pad int) {
	for beam := range bs.tokens {
		for len(bs.tokens[beam]) < newLen {
			bs.tokens[beam] = append(bs.tokens[beam], pad)
		}
		bs.tokens[beam] = bs.tokens[beam][:newLen]
	}
}

// resizeLogProbs truncates or zero-extends every beam's log-prob sequence to
// n entries.
func (bs *beamStore) resizeLogProbs(n int) {
	for beam := range bs.logProbs {
		for len(bs.logProbs[beam]) < n {
			bs.logProbs[beam] = append(bs.logProbs[beam], 0)
		}
		bs.logProbs[beam] = bs.logProbs[beam][:n]
	}
}

// NumTokens returns the total number of tokens (prompt + generated) for one
// beam. Panics on an out-of-range beam index.
func (req *Request) NumTokens(beam int) int {
	return len(req.beams.tokens[beam])
}

// MaxBeamNumTokens returns the longest token sequence across all beams.
func (req *Request) MaxBeamNumTokens() int {
	maxTokens := 0
	for beam := range req.beams.tokens {
		maxTokens = max(maxTokens, len(req.beams.tokens[beam]))
	}
	return maxTokens
}

// MaxNumGeneratedTokens returns the maximum number of generated tokens among
// all beams, excluding the prompt. Pause arithmetic and capacity queries build
// on this.
func (req *Request) MaxNumGeneratedTokens() int {
	return req.MaxBeamNumTokens() - req.promptLen
}

// Token returns the token at pos (relative to the beginning of the prompt) on
// one beam. Panics out of range.
func (req *Request) Token(beam, pos int) int {
	return req.beams.tokens[beam][pos]
}

// Tokens returns one beam's token sequence, prompt included. The slice is the
// request's internal storage -- callers MUST NOT mutate it.
func (req *Request) Tokens(beam int) []int {
	return req.beams.tokens[beam]
}

// AllTokens returns every beam's token sequence. Same aliasing rule as Tokens.
func (req *Request) AllTokens() [][]int {
	return req.beams.tokens
}

// AddNewToken appends one generated token to one beam.
func (req *Request) AddNewToken(token, beam int) {
	req.beams.tokens[beam] = append(req.beams.tokens[beam], token)
}

// AddNewTokens appends one generated token to every beam. beamTokens must hold
// exactly beamWidth entries; a mismatch is a caller bug and panics.
func (req *Request) AddNewTokens(beamTokens []int) {
	if len(beamTokens) != req.Sampling.BeamWidth {
		panic(fmt.Sprintf("request %s: AddNewTokens got %d tokens for beam width %d",
			req.ID, len(beamTokens), req.Sampling.BeamWidth))
	}
	for beam, token := range beamTokens {
		req.beams.tokens[beam] = append(req.beams.tokens[beam], token)
	}
}

// SetGeneratedTokens atomically replaces the generated suffix (everything past
// promptLen) of every beam. Used when beam-search reselection or a
// speculative-decoding rollback invalidates previously appended tokens.
func (req *Request) SetGeneratedTokens(generatedBeamTokens [][]int) {
	if len(generatedBeamTokens) != req.Sampling.BeamWidth {
		panic(fmt.Sprintf("request %s: SetGeneratedTokens got %d beams for beam width %d",
			req.ID, len(generatedBeamTokens), req.Sampling.BeamWidth))
	}
	for beam := range generatedBeamTokens {
		req.beams.tokens[beam] = append(req.beams.tokens[beam][:req.promptLen], generatedBeamTokens[beam]...)
	}
}

// LogProbs returns one beam's log-prob sequence.
func (req *Request) LogProbs(beam int) []float32 {
	return req.beams.logProbs[beam]
}

// AllLogProbs returns every beam's log-prob sequence.
func (req *Request) AllLogProbs() [][]float32 {
	return req.beams.logProbs
}

// SetLogProbs appends logProbs to one beam starting at offset
// promptLen - origPromptLen. The offset, not the raw sequence length, is what
// keeps storage correct across repeated pause/resume cycles where promptLen
// grows past its original value.
func (req *Request) SetLogProbs(logProbs []float32, beam int) {
	offset := req.promptLen - req.origPromptLen
	lp := req.beams.logProbs[beam]
	for len(lp) < offset {
		lp = append(lp, 0)
	}
	req.beams.logProbs[beam] = append(lp[:offset], logProbs...)
}

// CumLogProbs returns the cumulative log-prob scalar per beam.
func (req *Request) CumLogProbs() []float32 {
	return req.beams.cumLogProbs
}

// SetCumLogProb overwrites one beam's cumulative log-prob. Running totals are
// the caller's responsibility; nothing accumulates here.
func (req *Request) SetCumLogProb(cumLogProb float32, beam int) {
	req.beams.cumLogProbs[beam] = cumLogProb
}
