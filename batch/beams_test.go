package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNewToken_SingleBeamAppend(t *testing.T) {
	req := newTestRequest(t, "r1", 3, 2)
	req.AddNewToken(99, 1)

	assert.Equal(t, 3, req.NumTokens(0))
	assert.Equal(t, 4, req.NumTokens(1))
	assert.Equal(t, 99, req.Token(1, 3))
	assert.Equal(t, 4, req.MaxBeamNumTokens())
	assert.Equal(t, 1, req.MaxNumGeneratedTokens())
}

func TestAddNewTokens_AppendsOneTokenPerBeam(t *testing.T) {
	req := newTestRequest(t, "r1", 3, 3)
	req.AddNewTokens([]int{100, 200, 300})

	for beam, want := range []int{100, 200, 300} {
		if got := req.Token(beam, 3); got != want {
			t.Errorf("beam %d token = %d, want %d", beam, got, want)
		}
	}
	assert.Equal(t, 1, req.MaxNumGeneratedTokens())
}

func TestAddNewTokens_BeamCountMismatchPanics(t *testing.T) {
	req := newTestRequest(t, "r1", 3, 2)
	assert.Panics(t, func() { req.AddNewTokens([]int{1}) })
	assert.Panics(t, func() { req.AddNewTokens([]int{1, 2, 3}) })
}

func TestSetGeneratedTokens_ReplacesSuffixAtomically(t *testing.T) {
	// GIVEN two beams with two generated tokens each
	req := newTestRequest(t, "r1", 4, 2)
	req.AddNewTokens([]int{10, 20})
	req.AddNewTokens([]int{11, 21})

	// WHEN the generated suffix is replaced (rollback/reselection)
	req.SetGeneratedTokens([][]int{{30, 31, 32}, {40}})

	// THEN the prompt is intact and the suffix is exactly the replacement
	assert.Equal(t, []int{1, 2, 3, 4, 30, 31, 32}, req.Tokens(0))
	assert.Equal(t, []int{1, 2, 3, 4, 40}, req.Tokens(1))
	assert.Equal(t, 7, req.MaxBeamNumTokens())
	assert.Equal(t, 3, req.MaxNumGeneratedTokens())
}

func TestSetGeneratedTokens_BeamCountMismatchPanics(t *testing.T) {
	req := newTestRequest(t, "r1", 3, 2)
	assert.Panics(t, func() { req.SetGeneratedTokens([][]int{{1}}) })
}

func TestSetLogProbs_FreshRequestStoresAtZero(t *testing.T) {
	req := newTestRequest(t, "r1", 5, 1)
	req.SetLogProbs([]float32{-0.1, -0.2, -0.3}, 0)

	lp := req.LogProbs(0)
	require.Len(t, lp, 3)
	assert.Equal(t, float32(-0.1), lp[0])
}

func TestSetLogProbs_ReplacesGeneratedSuffix(t *testing.T) {
	// Repeated calls rewrite the suffix past the offset rather than append
	req := newTestRequest(t, "r1", 5, 1)
	req.SetLogProbs([]float32{-0.1, -0.2}, 0)
	req.SetLogProbs([]float32{-0.5}, 0)

	lp := req.LogProbs(0)
	require.Len(t, lp, 1)
	assert.Equal(t, float32(-0.5), lp[0])
}

func TestSetCumLogProb_OverwritesNotAccumulates(t *testing.T) {
	req := newTestRequest(t, "r1", 5, 2)
	req.SetCumLogProb(-1.5, 0)
	req.SetCumLogProb(-0.5, 0)
	req.SetCumLogProb(-3.0, 1)

	assert.Equal(t, []float32{-0.5, -3.0}, req.CumLogProbs())
}

func TestBeamInvariant_TokensNeverShorterThanPrompt(t *testing.T) {
	req := newTestRequest(t, "r1", 8, 4)
	generate(req, 5)
	req.SetGeneratedTokens([][]int{{}, {}, {}, {}})

	for beam := 0; beam < 4; beam++ {
		require.GreaterOrEqual(t, req.NumTokens(beam), req.PromptLen())
	}
}
