// Package pipeline runs the reconnaissance stages of one target in a fixed
// order and batches several targets.
//
// A Pipeline executes Steps in sequence against a shared model.RunReport.
// Tool stages (ToolStep) run an external scanner through the checkpoint gate
// and the resilient runner; MergeStep and FilterStep transform artifacts in
// process. DefaultPipeline assembles the full sequence from subdomain
// enumeration to secret scanning.
//
// A stage that fails or times out is recorded and the run continues. A block
// signature, a cancellation or the absence of live hosts stops the run.
// BatchProcessor runs several targets concurrently with errgroup; all of
// them share one kill switch, so a block on any target stops every target.
package pipeline
