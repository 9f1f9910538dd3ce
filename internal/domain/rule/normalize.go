package rule

import "sort"

// Normalize puts a parsed rule slice into the canonical order and shape the
// cache/sync layers diff against: rules sorted by severity (critical first)
// then id, each rule's condition groups' field-level conditions sorted by
// field path, and each rule's tool list sorted (the loader lowercases tool
// names before calling Normalize). Normalize is
// idempotent — running it twice produces the same result as running it once.
func Normalize(rules []Rule) {
	for i := range rules {
		sort.Strings(rules[i].Tools)
		for _, group := range rules[i].Groups {
			sort.SliceStable(group, func(a, b int) bool {
				return group[a].Field < group[b].Field
			})
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		si, sj := severityRank[rules[i].Severity], severityRank[rules[j].Severity]
		if si != sj {
			return si < sj
		}
		return rules[i].ID < rules[j].ID
	})
}
