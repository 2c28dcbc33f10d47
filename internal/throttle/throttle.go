// Package throttle rewrites scanner flag strings into less aggressive variants.
//
// When a stage fails or times out the runner retries it with lower rate,
// thread and concurrency values. Throttle finds those flags in the trusted
// flag text of a mode configuration and shrinks their integer arguments.
package throttle

import (
	"regexp"
	"strconv"
)

// MinValue is the lowest value a throttled flag is ever given.
const MinValue = 2

// pattern describes one family of flags and how hard to cut them.
// The new value is floor(v*num/den), never below MinValue.
type pattern struct {
	name string
	re   *regexp.Regexp
	num  int
	den  int
}

// flagPattern builds a regexp that matches one of the flag names preceded by
// start of text or whitespace, followed by whitespace or '=' and an integer.
// Submatch 2 is the integer.
func flagPattern(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|\s)(` + alternatives + `)(?:\s+|=)(\d+)\b`)
}

var patterns = []pattern{
	{name: "rate", re: flagPattern(`--?rate-limit|-rl|--?rate`), num: 1, den: 2},
	{name: "workers", re: flagPattern(`--?workers?`), num: 1, den: 2},
	{name: "threads", re: flagPattern(`--?threads?|-t`), num: 7, den: 10},
	{name: "concurrency", re: flagPattern(`--?concurrency|-c|-bulk-size`), num: 7, den: 10},
}

// Value returns the throttled value for v under the given factor num/den.
// The product is split so that values near the int range do not overflow.
func Value(v, num, den int) int {
	n := v/den*num + v%den*num/den
	if n < MinValue {
		return MinValue
	}
	return n
}

// Throttle returns flags with the first occurrence of every recognized
// rate, worker, thread and concurrency flag cut down. Rate and worker flags
// are halved, thread and concurrency flags are multiplied by 0.7; no value
// goes below MinValue. Text that matches no pattern is left untouched.
//
// changed reports whether any value was actually rewritten. Repeated calls
// keep shrinking values until every flag sits at MinValue, at which point
// changed is false.
func Throttle(flags string) (string, bool) {
	changed := false
	for _, p := range patterns {
		loc := p.re.FindStringSubmatchIndex(flags)
		if loc == nil {
			continue
		}
		start, end := loc[4], loc[5]
		v, err := strconv.Atoi(flags[start:end])
		if err != nil {
			continue
		}
		nv := Value(v, p.num, p.den)
		if nv == v {
			continue
		}
		flags = flags[:start] + strconv.Itoa(nv) + flags[end:]
		changed = true
	}
	return flags, changed
}
