// Package model defines the data structures shared by the pipeline, the
// reporters and the run history database.
//
//   - RunReport: one pipeline run over one target
//   - StageRecord: the outcome of a single stage within a run
//   - Finding: a non-empty findings artifact, as sent to alerting
//
// The models live in their own package so that pipeline, report, notify and
// database can all use them without import cycles. They serialize to JSON
// for the --json output.
package model
