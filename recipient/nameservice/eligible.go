package nameservice

import (
	"regexp"
	"strings"
)

// DefaultSuffixes are name-service TLDs that are not bech32 prefixes of a
// registry chain.
var DefaultSuffixes = []string{"arch", "arb", "bnb", "eth", "init", "sei", "sol", "stars", "core"}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.([A-Za-z0-9]+)$`)

// Allowlist is the set of TLDs eligible for name resolution.
type Allowlist map[string]struct{}

// NewAllowlist builds the allow-list from the bech32 prefix table keys and
// any extra suffixes.
func NewAllowlist(prefixes []string, extra ...string) Allowlist {
	allow := make(Allowlist, len(prefixes)+len(extra))
	for _, tld := range prefixes {
		allow[strings.ToLower(tld)] = struct{}{}
	}
	for _, tld := range extra {
		allow[strings.ToLower(tld)] = struct{}{}
	}
	return allow
}

// Contains reports whether the TLD is allowed.
func (a Allowlist) Contains(tld string) bool {
	_, ok := a[strings.ToLower(tld)]
	return ok
}

// TLD returns the top-level domain of a `label.tld` string.
func TLD(s string) (string, bool) {
	m := namePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// ShowNameServiceResults reports whether s should be resolved through the
// name services: it matches `label.tld` and the TLD is allowed.
func ShowNameServiceResults(s string, allow Allowlist) bool {
	tld, ok := TLD(s)
	return ok && allow.Contains(tld)
}

// Eligible is ShowNameServiceResults bound to the allow-list, usable as an
// address.WithNameCheck predicate.
func (a Allowlist) Eligible(s string) bool {
	return ShowNameServiceResults(s, a)
}
