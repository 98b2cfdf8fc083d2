// Chunked-context cursor: tracks how much of the prompt the scheduler has
// processed and the size of the next chunk. Long prompts are split across
// several iterations because per-iteration compute and memory budgets are
// bounded; the cursor keeps that progress independent of beam bookkeeping.

package batch

import "fmt"

// contextCursor holds the chunking progress for one request. The C++-style
// "optional chunk size" splits into two fields: chunked flips to true on the
// first SetContextChunkSize and stays true until the next Pause, while
// chunkSize returns to 0 after every advance as the "awaiting next assignment"
// sentinel.
type contextCursor struct {
	position  int  // prompt tokens processed so far, 0 <= position <= promptLen
	chunkSize int  // size of the next chunk, 0 = awaiting assignment
	chunked   bool // whether a chunk size was ever assigned since (re)init
}

func (c *contextCursor) reset() {
	c.position = 0
	c.chunkSize = 0
	c.chunked = false
}

// IsFullContextRequest reports whether the request has never had a chunk size
// assigned, i.e. the whole prompt goes through in one shot. A request chunked
// into even one part is different from this initial status.
func (req *Request) IsFullContextRequest() bool {
	return req.IsContextInitState() && !req.cursor.chunked
}

// ContextCurrentPosition returns the number of prompt tokens processed so far.
// When unchunked this is only ever the beginning or the end of the prompt.
func (req *Request) ContextCurrentPosition() int {
	return req.cursor.position
}

// ContextRemainingLength returns the length of the prompt that has not yet
// been processed.
func (req *Request) ContextRemainingLength() int {
	return req.promptLen - req.cursor.position
}

// ContextChunkSize returns the size of the current chunk. Panics when the
// request is not in a chunked context phase; that is a scheduler bug, not a
// runtime condition.
func (req *Request) ContextChunkSize() int {
	if !req.IsContextInitState() || !req.cursor.chunked {
		panic(fmt.Sprintf("request %s is not in context chunking state", req.ID))
	}
	return req.cursor.chunkSize
}

// SetContextChunkSize assigns the size of the next chunk. Legal only during
// the context phase; a negative size panics. A size larger than the remaining
// prompt is capped to the remainder.
func (req *Request) SetContextChunkSize(size int) {
	if !req.IsContextInitState() {
		panic(fmt.Sprintf("request %s: chunking is only possible during the context phase (state %s)", req.ID, req.state))
	}
	if size < 0 {
		panic(fmt.Sprintf("request %s: context chunk size %d can't be negative", req.ID, size))
	}
	req.cursor.chunkSize = min(size, req.ContextRemainingLength())
	req.cursor.chunked = true
}

// IsLastContextChunk reports whether the current position is one chunk away
// from the end of the prompt. True for unchunked requests.
func (req *Request) IsLastContextChunk() bool {
	return req.IsFullContextRequest() ||
		(req.IsContextInitState() && req.cursor.position+req.ContextChunkSize() == req.promptLen)
}

// IsFirstContextChunk reports whether the position is at the beginning of the
// prompt. True for unchunked requests.
func (req *Request) IsFirstContextChunk() bool {
	return req.IsFullContextRequest() || req.cursor.position == 0
}

// MoveToNextContextChunk advances the cursor by one chunk after the scheduler
// has processed it, then resets the chunk size to 0 until the next assignment.
// For an unchunked request this is the single full-context step straight to
// the end of the prompt.
func (req *Request) MoveToNextContextChunk() {
	if !req.IsContextInitState() {
		panic(fmt.Sprintf("request %s: chunking is only possible during the context phase (state %s)", req.ID, req.state))
	}
	if req.cursor.chunked {
		req.cursor.position += req.ContextChunkSize()
		req.SetContextChunkSize(0)
	} else {
		if req.cursor.position != 0 {
			panic(fmt.Sprintf("request %s: full context out of bounds", req.ID))
		}
		req.cursor.position = req.promptLen
	}
}
