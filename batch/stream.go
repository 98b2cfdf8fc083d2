// Result-streaming layer: delivers generated tokens to the caller without
// ever re-sending an already-delivered position. The streamer owns
// MaxSentTokenPos: it recomputes the unsent range from it after every flush,
// which is what keeps delivery exact across pause/resume cycles.

package batch

import (
	"io"

	json "github.com/goccy/go-json"
)

// StreamFrame is one delta delivered to the caller.
type StreamFrame struct {
	RequestID   string      `json:"request_id"`
	StartPos    int         `json:"start_pos"` // position of Tokens[beam][0]
	Tokens      [][]int     `json:"tokens"`    // per beam, in lockstep
	LogProbs    [][]float32 `json:"log_probs,omitempty"`
	CumLogProbs []float32   `json:"cum_log_probs,omitempty"`
	Final       bool        `json:"final,omitempty"`
}

// Streamer encodes delta frames to a writer. One instance serves many
// requests; per-request progress lives on the request itself.
type Streamer struct {
	enc    *json.Encoder
	frames int
}

// NewStreamer builds a streamer writing JSON frames to w.
func NewStreamer(w io.Writer) *Streamer {
	return &Streamer{enc: json.NewEncoder(w)}
}

// Frames returns the number of frames emitted so far.
func (s *Streamer) Frames() int { return s.frames }

// Flush emits the token positions past MaxSentTokenPos that every beam has
// reached, then advances MaxSentTokenPos. Emitting nothing is not an error.
func (s *Streamer) Flush(req *Request) error {
	return s.flush(req, false)
}

// FlushFinal emits the remaining unsent positions with the final marker. For
// a non-streaming request this is the single delivery of the whole result.
func (s *Streamer) FlushFinal(req *Request) error {
	return s.flush(req, true)
}

func (s *Streamer) flush(req *Request, final bool) error {
	from := req.MaxSentTokenPos() + 1
	limit := minBeamNumTokens(req)
	if from >= limit {
		if !final {
			return nil
		}
		// A multi-beam pause can truncate beams below the already-delivered
		// position; the final frame is then an empty completion marker.
		from = limit
	}

	frame := StreamFrame{
		RequestID: req.ID,
		StartPos:  from,
		Tokens:    make([][]int, req.Sampling.BeamWidth),
		Final:     final,
	}
	for beam := 0; beam < req.Sampling.BeamWidth; beam++ {
		frame.Tokens[beam] = append([]int{}, req.Tokens(beam)[from:limit]...)
	}
	if req.ReturnLogProbs() {
		frame.LogProbs = make([][]float32, req.Sampling.BeamWidth)
		for beam := 0; beam < req.Sampling.BeamWidth; beam++ {
			frame.LogProbs[beam] = logProbRange(req, beam, from, limit)
		}
		frame.CumLogProbs = append([]float32{}, req.CumLogProbs()...)
	}

	if err := s.enc.Encode(frame); err != nil {
		return err
	}
	s.frames++
	if limit-1 > req.MaxSentTokenPos() {
		req.SetMaxSentTokenPos(limit - 1)
	}
	return nil
}

// logProbRange maps token positions [from, limit) to log-prob entries. The
// log-prob sequence covers generated positions starting at origPromptLen, so
// position p lives at index p - origPromptLen.
func logProbRange(req *Request, beam, from, limit int) []float32 {
	lp := req.LogProbs(beam)
	lo := from - req.OrigPromptLen()
	hi := limit - req.OrigPromptLen()
	if lo < 0 {
		lo = 0
	}
	if hi > len(lp) {
		hi = len(lp)
	}
	if lo >= hi {
		return nil
	}
	return append([]float32{}, lp[lo:hi]...)
}

// minBeamNumTokens returns the shortest beam length: the highest position
// that exists on every beam, plus one. Streaming never sends a position some
// beam has not reached.
func minBeamNumTokens(req *Request) int {
	minTokens := req.NumTokens(0)
	for beam := 1; beam < req.Sampling.BeamWidth; beam++ {
		minTokens = min(minTokens, req.NumTokens(beam))
	}
	return minTokens
}
