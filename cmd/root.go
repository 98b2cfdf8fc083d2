package cmd

import (
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/llmbatch/llmbatch/batch"
)

var (
	// CLI flags for the executor budgets
	seed                      int64  // Seed for random workload generation
	logLevel                  string // Log verbosity level
	maxRunningReqs            int    // Maximum number of requests resident per iteration
	maxScheduledTokens        int    // Maximum total new tokens processed per iteration
	longPrefillTokenThreshold int    // Prompt length beyond which chunked context is triggered
	maxInputLen               int    // Cap on prompt growth during single-beam pause
	numSlots                  int    // Execution slots in the pool
	tokenCapacity             int    // Shared token budget across resident requests
	schedulerName             string // Wait queue ordering policy
	maxIterations             int64  // Safety stop for the driver loop

	// CLI flags for the synthetic workload
	maxPrompts        int // Number of requests
	beamWidth         int // Beams per request
	maxNewTokens      int // New-token budget per request
	vocabSize         int // Token id range for synthetic tokens
	promptTokensMean  int // Average Prompt Token Count
	promptTokensStdev int // Stdev Prompt Token Count
	promptTokensMin   int // Min Prompt Token Count
	promptTokensMax   int // Max Prompt Token Count
	outputTokensMean  int // Average Output Token Count
	outputTokensStdev int // Stdev Output Token Count
	outputTokensMin   int // Min Output Token Count
	outputTokensMax   int // Max Output Token Count
	streamResults     bool
	returnLogProbs    bool

	workloadFilePath string // Optional YAML workload preset file
	workloadType     string // Preset name within the file
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "llmbatch",
	Short: "Request lifecycle core for continuous-batching LLM inference",
}

// runCmd drives a synthetic workload through the executor using parameters
// from CLI flags.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload through the batching executor",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if workloadFilePath != "" {
			if w := GetWorkloadConfig(workloadFilePath, workloadType); w != nil {
				promptTokensMean, promptTokensStdev = w.PromptTokensMean, w.PromptTokensStdev
				promptTokensMin, promptTokensMax = w.PromptTokensMin, w.PromptTokensMax
				outputTokensMean, outputTokensStdev = w.OutputTokensMean, w.OutputTokensStdev
				outputTokensMin, outputTokensMax = w.OutputTokensMin, w.OutputTokensMax
			} else {
				logrus.Fatalf("workload preset %q not found in %s", workloadType, workloadFilePath)
			}
		}

		logrus.Infof("Starting run: %d requests, %d slots, token capacity %d, scheduler %s",
			maxPrompts, numSlots, tokenCapacity, schedulerName)
		startTime := time.Now()

		rng := rand.New(rand.NewSource(seed))
		endID := vocabSize - 1
		targets := make(map[string]int)

		// Deterministic stand-in for the model: emits synthetic tokens until
		// the request reaches its sampled output length, then the end token.
		step := func(_ int64, decode *batch.Batch) batch.StepResult {
			result := batch.StepResult{
				Tokens:   make(map[string][]int),
				LogProbs: make(map[string][]float32),
			}
			for _, req := range decode.Requests {
				tokens := make([]int, req.Sampling.BeamWidth)
				logProbs := make([]float32, req.Sampling.BeamWidth)
				for beam := range tokens {
					if req.MaxNumGeneratedTokens()+1 >= targets[req.ID] {
						tokens[beam] = endID
					} else {
						tokens[beam] = rng.Intn(vocabSize - 1)
					}
					logProbs[beam] = -rng.Float32()
				}
				result.Tokens[req.ID] = tokens
				result.LogProbs[req.ID] = logProbs
			}
			return result
		}

		slots := batch.NewSlotManager(numSlots, tokenCapacity)
		streamer := batch.NewStreamer(os.Stdout)
		exec := batch.NewExecutor(batch.ExecutorConfig{
			MaxRunningReqs:            maxRunningReqs,
			MaxScheduledTokens:        maxScheduledTokens,
			LongPrefillTokenThreshold: longPrefillTokenThreshold,
			MaxInputLen:               maxInputLen,
		}, slots, batch.NewScheduler(schedulerName), streamer, step)

		for i := 0; i < maxPrompts; i++ {
			promptLen := boundedSample(rng, promptTokensMean, promptTokensStdev, promptTokensMin, promptTokensMax)
			prompt := make([]int, promptLen)
			for j := range prompt {
				prompt[j] = rng.Intn(vocabSize - 1)
			}
			id := uuid.NewString()
			targets[id] = boundedSample(rng, outputTokensMean, outputTokensStdev, outputTokensMin, outputTokensMax)

			req, err := batch.NewRequest(id, maxNewTokens, prompt, batch.SamplingConfig{BeamWidth: beamWidth},
				batch.RequestConfig{
					Streaming:      streamResults,
					ReturnLogProbs: returnLogProbs,
					EndID:          &endID,
				})
			if err != nil {
				logrus.Fatalf("request construction failed: %v", err)
			}
			exec.Submit(req)
		}

		for !exec.Done() && exec.Iteration() < maxIterations {
			exec.RunIteration()
		}

		logrus.Infof("Run complete: %d/%d requests finished in %d iterations, %d pauses, %v wall time",
			len(exec.Completed()), maxPrompts, exec.Iteration(), exec.Pauses(), time.Since(startTime))
	},
}

// boundedSample draws from a normal distribution and clamps to [lo, hi].
func boundedSample(rng *rand.Rand, mean, stdev, lo, hi int) int {
	v := int(rng.NormFloat64()*float64(stdev)) + mean
	return max(lo, min(hi, v))
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for random workload generation")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Executor budgets
	runCmd.Flags().IntVar(&maxRunningReqs, "max-num-running-reqs", 256, "Maximum number of requests resident per iteration")
	runCmd.Flags().IntVar(&maxScheduledTokens, "max-num-scheduled-tokens", 2048, "Maximum total new tokens processed per iteration")
	runCmd.Flags().IntVar(&longPrefillTokenThreshold, "long-prefill-token-threshold", 0, "Prompt length beyond which chunked context is triggered (0 = budget-only)")
	runCmd.Flags().IntVar(&maxInputLen, "max-input-len", 2048, "Cap on prompt growth during single-beam pause")
	runCmd.Flags().IntVar(&numSlots, "slots", 64, "Execution slots in the pool")
	runCmd.Flags().IntVar(&tokenCapacity, "token-capacity", 100000, "Shared token budget across resident requests")
	runCmd.Flags().StringVar(&schedulerName, "scheduler", "fcfs", "Wait queue ordering policy (fcfs, priority-fcfs, sjf)")
	runCmd.Flags().Int64Var(&maxIterations, "max-iterations", 1_000_000, "Safety stop for the driver loop")

	// Synthetic workload
	runCmd.Flags().IntVar(&maxPrompts, "max-prompts", 128, "Number of requests")
	runCmd.Flags().IntVar(&beamWidth, "beam-width", 1, "Beams per request")
	runCmd.Flags().IntVar(&maxNewTokens, "max-new-tokens", 512, "New-token budget per request")
	runCmd.Flags().IntVar(&vocabSize, "vocab-size", 32000, "Token id range for synthetic tokens")
	runCmd.Flags().IntVar(&promptTokensMean, "prompt-tokens", 256, "Average prompt token count")
	runCmd.Flags().IntVar(&promptTokensStdev, "prompt-tokens-stdev", 64, "Stdev prompt token count")
	runCmd.Flags().IntVar(&promptTokensMin, "prompt-tokens-min", 8, "Min prompt token count")
	runCmd.Flags().IntVar(&promptTokensMax, "prompt-tokens-max", 1024, "Max prompt token count")
	runCmd.Flags().IntVar(&outputTokensMean, "output-tokens", 128, "Average output token count")
	runCmd.Flags().IntVar(&outputTokensStdev, "output-tokens-stdev", 32, "Stdev output token count")
	runCmd.Flags().IntVar(&outputTokensMin, "output-tokens-min", 1, "Min output token count")
	runCmd.Flags().IntVar(&outputTokensMax, "output-tokens-max", 512, "Max output token count")
	runCmd.Flags().BoolVar(&streamResults, "stream", false, "Stream partial results as JSON frames")
	runCmd.Flags().BoolVar(&returnLogProbs, "log-probs", false, "Record per-token log probabilities")

	runCmd.Flags().StringVar(&workloadFilePath, "workload-config", "", "YAML workload preset file")
	runCmd.Flags().StringVar(&workloadType, "workload", "chat", "Preset name within the workload config file")

	rootCmd.AddCommand(runCmd)
}
