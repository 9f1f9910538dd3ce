package rule

import "fmt"

// SchemaError describes one rule file or rule that failed to parse,
// validate, or normalize. Loading aggregates every SchemaError found across
// a rule file rather than stopping at the first (spec §7: "SchemaError —
// fatal per rule file, aggregated").
type SchemaError struct {
	File   string
	RuleID string // empty if the error predates knowing the rule's id
	Field  string
	Message string
}

func (e *SchemaError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("%s: rule %q: %s: %s", e.File, e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// SchemaErrors aggregates every SchemaError found while loading one file.
type SchemaErrors []*SchemaError

func (e SchemaErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d schema errors:", len(e))
	for _, se := range e {
		msg += "\n  " + se.Error()
	}
	return msg
}
