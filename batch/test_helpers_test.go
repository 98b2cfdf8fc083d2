package batch

import "testing"

// newTestRequest builds a request with a sequential prompt of promptLen
// tokens and the given beam width. Log-prob recording is always on so pause
// paths exercise both ledgers.
func newTestRequest(t *testing.T, id string, promptLen, beamWidth int) *Request {
	t.Helper()
	prompt := make([]int, promptLen)
	for i := range prompt {
		prompt[i] = i + 1
	}
	req, err := NewRequest(id, 1000, prompt, SamplingConfig{BeamWidth: beamWidth}, RequestConfig{ReturnLogProbs: true})
	if err != nil {
		t.Fatalf("NewRequest(%s) failed: %v", id, err)
	}
	return req
}

// generate appends n synthetic tokens to every beam of req, numbering from
// 10000 plus the current generated count so repeated calls keep counting up.
func generate(req *Request, n int) {
	base := req.MaxNumGeneratedTokens()
	for i := 0; i < n; i++ {
		tokens := make([]int, req.Sampling.BeamWidth)
		for beam := range tokens {
			tokens[beam] = 10000 + base + i
		}
		req.AddNewTokens(tokens)
	}
}
