package batch

import (
	"bytes"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFrames(t *testing.T, buf *bytes.Buffer) []StreamFrame {
	t.Helper()
	var frames []StreamFrame
	dec := json.NewDecoder(buf)
	for dec.More() {
		var f StreamFrame
		require.NoError(t, dec.Decode(&f))
		frames = append(frames, f)
	}
	return frames
}

func TestStreamer_FlushEmitsOnlyNewPositions(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamer(&buf)
	req := newTestRequest(t, "r1", 5, 1)

	// Nothing generated yet: no frame
	require.NoError(t, s.Flush(req))
	assert.Equal(t, 0, s.Frames())

	generate(req, 2)
	require.NoError(t, s.Flush(req))
	generate(req, 1)
	require.NoError(t, s.Flush(req))
	// No growth since the last flush: no frame
	require.NoError(t, s.Flush(req))

	frames := decodeFrames(t, &buf)
	require.Len(t, frames, 2)
	assert.Equal(t, 5, frames[0].StartPos)
	assert.Equal(t, []int{10000, 10001}, frames[0].Tokens[0])
	assert.Equal(t, 7, frames[1].StartPos)
	assert.Equal(t, []int{10002}, frames[1].Tokens[0])
	assert.Equal(t, 7, req.MaxSentTokenPos())
}

func TestStreamer_NoDuplicatesAcrossPauseResume(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamer(&buf)
	req := newTestRequest(t, "r1", 10, 1)

	generate(req, 4)
	require.NoError(t, s.Flush(req))
	sentBefore := req.MaxSentTokenPos()
	require.Equal(t, 13, sentBefore)

	// Pause reclassifies the 4 generated tokens as prompt; the sent marker
	// survives untouched
	req.Pause(100)
	require.Equal(t, 14, req.PromptLen())
	require.Equal(t, 13, req.MaxSentTokenPos())

	// After resume, two more tokens are generated
	generate(req, 2)
	require.NoError(t, s.Flush(req))

	frames := decodeFrames(t, &buf)
	require.Len(t, frames, 2)
	// Second frame starts exactly one past the pre-pause marker
	assert.Equal(t, 14, frames[1].StartPos)
	assert.Equal(t, []int{10000, 10001}, frames[1].Tokens[0])

	// Every streamed position is unique across the whole session
	seen := map[int]bool{}
	for _, f := range frames {
		for i := range f.Tokens[0] {
			pos := f.StartPos + i
			assert.False(t, seen[pos], "position %d streamed twice", pos)
			seen[pos] = true
		}
	}
}

func TestStreamer_MultiBeamSendsLockstepPositionsOnly(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamer(&buf)
	req := newTestRequest(t, "r1", 5, 2)

	// Beam 0 is one token ahead; only positions both beams reached go out
	req.AddNewTokens([]int{100, 200})
	req.AddNewToken(101, 0)
	require.NoError(t, s.Flush(req))

	frames := decodeFrames(t, &buf)
	require.Len(t, frames, 1)
	assert.Equal(t, []int{100}, frames[0].Tokens[0])
	assert.Equal(t, []int{200}, frames[0].Tokens[1])
	assert.Equal(t, 5, req.MaxSentTokenPos())
}

func TestStreamer_FinalFrameCarriesLogProbs(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamer(&buf)
	req := newTestRequest(t, "r1", 5, 1)

	generate(req, 3)
	req.SetLogProbs([]float32{-0.1, -0.2, -0.3}, 0)
	req.SetCumLogProb(-0.6, 0)
	require.NoError(t, s.FlushFinal(req))

	frames := decodeFrames(t, &buf)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Final)
	assert.Equal(t, []float32{-0.1, -0.2, -0.3}, frames[0].LogProbs[0])
	assert.Equal(t, []float32{-0.6}, frames[0].CumLogProbs)
}

func TestStreamer_FinalFrameAfterFullStream_IsEmptyMarker(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamer(&buf)
	req := newTestRequest(t, "r1", 5, 1)

	generate(req, 2)
	require.NoError(t, s.Flush(req))
	require.NoError(t, s.FlushFinal(req))

	frames := decodeFrames(t, &buf)
	require.Len(t, frames, 2)
	assert.True(t, frames[1].Final)
	assert.Empty(t, frames[1].Tokens[0])
}

func TestStreamer_FinalFrameAfterMultiBeamPauseShortfall(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamer(&buf)
	req := newTestRequest(t, "r1", 10, 2)

	// Three generated positions go out, advancing the sent marker to 12
	generate(req, 3)
	require.NoError(t, s.Flush(req))
	require.Equal(t, 12, req.MaxSentTokenPos())

	// A multi-beam pause discards the generated tokens while the delivered
	// marker stays put; the rerun completes with fewer tokens than were sent
	req.Pause(100)
	generate(req, 1)
	require.NoError(t, s.FlushFinal(req))

	frames := decodeFrames(t, &buf)
	require.Len(t, frames, 2)
	assert.True(t, frames[1].Final)
	assert.Empty(t, frames[1].Tokens[0])
	assert.Empty(t, frames[1].Tokens[1])
	assert.Equal(t, 12, req.MaxSentTokenPos(), "marker never moves backwards")
}

func TestExecutor_StreamingIntegration_NoDuplicatePositions(t *testing.T) {
	var buf bytes.Buffer
	endID := 7
	e := NewExecutor(ExecutorConfig{
		MaxRunningReqs:     8,
		MaxScheduledTokens: 2048,
		MaxInputLen:        2048,
	}, NewSlotManager(8, 10000), nil, NewStreamer(&buf), stepAfter(endID, 3))

	prompt := []int{1, 2, 3, 4, 5}
	req, err := NewRequest("a", 100, prompt, SamplingConfig{BeamWidth: 1},
		RequestConfig{EndID: &endID, Streaming: true})
	require.NoError(t, err)
	e.Submit(req)
	runUntilDone(t, e, 20)

	frames := decodeFrames(t, &buf)
	require.NotEmpty(t, frames)
	var streamed []int
	seen := map[int]bool{}
	for _, f := range frames {
		for i, tok := range f.Tokens[0] {
			pos := f.StartPos + i
			require.False(t, seen[pos], "position %d streamed twice", pos)
			seen[pos] = true
			streamed = append(streamed, tok)
		}
	}
	assert.Equal(t, []int{1000, 1001, 1002, 7}, streamed)
	assert.True(t, frames[len(frames)-1].Final)
}
