// Package runner executes one pipeline stage as an external process.
//
// A Runner spawns the scanner described by a Command, drains its stdout and
// stderr concurrently, enforces a per-attempt timeout and classifies the
// result as Success, Failed, Blocked or TimedOut. Failed and timed-out
// attempts are retried with throttled flags (see package throttle) until the
// stage's retry budget runs out.
//
// Block detection is not an ordinary failure. When captured output contains
// a block signature the Runner trips its KillSwitch, which cancels the run
// context shared by every stage, and returns a *BlockedError. Callers must
// treat that error as fatal for the whole process.
//
// Arguments are never handed to a shell. The trusted flag text from a mode
// configuration is split with go-shellwords; target names, paths, cookies and
// proxies travel as separate argv elements.
package runner
