// Package artifact manages the files a pipeline run produces.
//
// Every run owns one working directory, its RunContext, under
// <output>/<target>/<YYYY-MM-DD>. Stages read and write line-based text
// artifacts there using stable basenames, so a later invocation on the same
// day finds and reuses whatever an earlier one completed.
//
// Besides path handling the package holds the in-process artifact
// transformations: the URL merge with deduplication and noise filtering,
// the JS URL filter, and host list normalization for port scanning. All
// writes go through a temporary file and a rename so a crash never leaves a
// half-written artifact that the checkpoint gate would mistake for a
// complete one.
package artifact
