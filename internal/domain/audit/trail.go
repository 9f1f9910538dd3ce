package audit

import "strings"

// Trail accumulates Entry records for one decision, respecting its
// configured Verbosity and redacting any path beneath RedactPaths before
// the entry is ever stored (spec §4.12).
type Trail struct {
	verbosity   Verbosity
	redactPaths []string
	entries     []Entry
}

// NewTrail constructs a Trail. A nil *Trail is valid to pass around (every
// method is a no-op on a nil receiver) so callers that don't want a trail
// can pass nil instead of threading a verbosity check everywhere.
func NewTrail(verbosity Verbosity, redactPaths []string) *Trail {
	return &Trail{verbosity: verbosity, redactPaths: redactPaths}
}

// AddRuleMatch records a rule-level entry. Recorded at both simple and
// verbose verbosity.
func (t *Trail) AddRuleMatch(e Entry) {
	if t == nil || t.verbosity == VerbosityNone {
		return
	}
	t.entries = append(t.entries, t.redact(e))
}

// AddConstraintCheck records a per-argument constraint entry. Recorded only
// at verbose verbosity ("every constraint evaluation", spec §4.12).
func (t *Trail) AddConstraintCheck(e Entry) {
	if t == nil || t.verbosity != VerbosityVerbose {
		return
	}
	t.entries = append(t.entries, t.redact(e))
}

// Entries returns the recorded entries in insertion order. Returns nil for
// a nil Trail.
func (t *Trail) Entries() []Entry {
	if t == nil {
		return nil
	}
	return t.entries
}

// Verbosity reports the trail's configured verbosity.
func (t *Trail) Verbosity() Verbosity {
	if t == nil {
		return VerbosityNone
	}
	return t.verbosity
}

func (t *Trail) redact(e Entry) Entry {
	if isRedactedPath(e.Path, t.redactPaths) {
		e.Expected = redactedPlaceholder
		e.Actual = redactedPlaceholder
	}
	return e
}

// isRedactedPath reports whether path is exactly one of redactPaths, or
// nested beneath one ("user.ssn" redacts "user.ssn" and "user.ssn.last4").
func isRedactedPath(path string, redactPaths []string) bool {
	for _, rp := range redactPaths {
		if rp == "" {
			continue
		}
		if path == rp || strings.HasPrefix(path, rp+".") {
			return true
		}
	}
	return false
}
