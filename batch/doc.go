// Package batch implements the per-request lifecycle and progress-tracking
// core of a continuous-batching LLM inference server.
//
// # Reading Guide
//
// Start with these three files to understand the bookkeeping kernel:
//   - request.go: Request lifecycle (context_init -> generation_in_progress ->
//     generation_complete), construction validation, and pause/resume
//   - context_chunk.go: the chunked-context cursor that splits long prompts
//     across scheduler iterations
//   - beams.go: per-beam token and log-probability storage
//
// # Architecture
//
// A Request is the shared mutable state that every iteration of the batch
// scheduler reads and updates. The heavy collaborators are external: the
// forward pass, the sampler, and the physical KV allocator are out of scope.
// What lives here is the contract they all consume:
//   - the scheduler drives the state machine once per iteration (executor.go
//     is a reference driver, with queue.go/scheduler.go/slots.go as its
//     supporting pieces)
//   - the result-streaming layer (stream.go) reads token deltas past the
//     last-sent position and never re-sends delivered positions, even across
//     pause/resume cycles
//   - the memory manager reads the sizing accessors and forces Pause on
//     capacity pressure
//
// Attachments (attachments.go, draft.go) carry optional side buffers
// (embedding bias, word lists, prompt-tuning tables, adapter weights, draft
// token candidates, captured logits) through the pipeline as tensor.Tensor
// handles with explicit host/device residency.
//
// # Concurrency
//
// Single writer per iteration: exactly one scheduling goroutine mutates a
// Request during any one batch iteration. No type in this package locks.
package batch
