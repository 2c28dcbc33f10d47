package signature

import "strings"

// defaultSignatures lists the block indicators checked by Default.
// Order is the scan order, so the first entry wins when several match.
var defaultSignatures = []string{
	"Access Denied",
	"Attention Required! | Cloudflare",
	"cf-chl-bypass",
	"challenge-platform",
	"Request unsuccessful. Incapsula incident ID",
	"Sucuri WebSite Firewall",
	"AkamaiGHost",
	"The requested URL was rejected",
	"You have been blocked",
	"Web Application Firewall",
}

// Matcher checks text for known block signatures.
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	signatures []string
}

// New creates a Matcher for the given signatures.
// Empty strings are dropped because they would match everything.
func New(signatures ...string) *Matcher {
	m := &Matcher{signatures: make([]string, 0, len(signatures))}
	for _, s := range signatures {
		if s == "" {
			continue
		}
		m.signatures = append(m.signatures, s)
	}
	return m
}

// Default returns a Matcher with the built-in signatures followed by extra.
func Default(extra ...string) *Matcher {
	all := make([]string, 0, len(defaultSignatures)+len(extra))
	all = append(all, defaultSignatures...)
	all = append(all, extra...)
	return New(all...)
}

// DefaultSignatures returns a copy of the built-in signature list.
func DefaultSignatures() []string {
	out := make([]string, len(defaultSignatures))
	copy(out, defaultSignatures)
	return out
}

// Match reports whether output contains one of the signatures as a
// case-sensitive substring, and returns the first one found.
func (m *Matcher) Match(output string) (bool, string) {
	if m == nil || output == "" {
		return false, ""
	}
	for _, s := range m.signatures {
		if strings.Contains(output, s) {
			return true, s
		}
	}
	return false, ""
}

// Signatures returns the signatures in scan order.
func (m *Matcher) Signatures() []string {
	out := make([]string, len(m.signatures))
	copy(out, m.signatures)
	return out
}
