// Package database provides SQLite-based run history for autokuro.
//
// Every pipeline run is recorded in a single database file under the XDG
// data directory: one row per run (target, mode, status, findings) and one
// row per stage with its outcome, attempt counts and a SHA3-256 fingerprint
// of the artifact it left behind. Fingerprints let the history command tell
// which artifacts changed between two runs of the same target.
//
// The driver is modernc.org/sqlite, a CGO-free implementation, so the
// binary cross-compiles without a C toolchain.
package database
