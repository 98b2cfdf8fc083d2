package batch

// SamplingConfig carries the sampling parameters fixed at request
// construction. Only BeamWidth is read by the bookkeeping core; the remaining
// knobs ride along for the external sampler.
type SamplingConfig struct {
	BeamWidth   int     // number of parallel candidate sequences (>= 1)
	Temperature float64 // softmax temperature (0 = greedy, sampler-defined)
	TopK        int     // top-k cutoff, 0 = disabled
	TopP        float64 // nucleus cutoff, 0 = disabled
}
