package config

import (
	"fmt"
	"strings"
)

// maxDomainLength is the DNS limit on a full domain name.
const maxDomainLength = 253

// NormalizeTarget lowercases a target and strips surrounding whitespace and
// a trailing dot.
func NormalizeTarget(target string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(target)), ".")
}

// ValidateTarget checks that target is a plain domain name. Targets become
// directory names and tool arguments, so anything that could be read as a
// path or an option is rejected.
func ValidateTarget(target string) error {
	t := NormalizeTarget(target)
	if t == "" || len(t) > maxDomainLength {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if strings.HasPrefix(t, "-") || strings.HasPrefix(t, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	labels := strings.Split(t, ".")
	for _, label := range labels {
		if !validLabel(label) {
			return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
	}
	return nil
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
