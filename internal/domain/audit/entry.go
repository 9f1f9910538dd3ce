// Package audit implements the explanation/audit trail (spec §4.12): a
// structured record of which rules and constraints were evaluated for a
// decision, at one of three verbosity levels, with path-based redaction.
package audit

// Result is whether one explanation entry's check passed.
type Result string

const (
	ResultPass Result = "pass"
	ResultFail Result = "fail"
)

// Entry is one rule or constraint evaluation record (spec §3).
type Entry struct {
	RuleID     string
	RuleName   string
	Constraint string
	Path       string
	Expected   string
	Actual     string
	Result     Result
	Message    string
}

// Verbosity controls how much of a decision's evaluation is recorded.
type Verbosity string

const (
	// VerbosityNone records nothing.
	VerbosityNone Verbosity = "none"
	// VerbositySimple records one entry per matched rule.
	VerbositySimple Verbosity = "simple"
	// VerbosityVerbose records every constraint evaluation, matched or not.
	VerbosityVerbose Verbosity = "verbose"
)

// ParseVerbosity parses a config string, defaulting to VerbositySimple for
// an empty or unrecognized value (the loader's config.Validate rejects
// unrecognized values before this is ever reached in production).
func ParseVerbosity(s string) Verbosity {
	switch Verbosity(s) {
	case VerbosityNone, VerbositySimple, VerbosityVerbose:
		return Verbosity(s)
	default:
		return VerbositySimple
	}
}

const redactedPlaceholder = "[REDACTED]"
