package value

import "strings"

// ArgumentsPrefix is the literal prefix every dotted argument path begins
// with in rule files and expressions ("arguments.user.name").
const ArgumentsPrefix = "arguments."

// StripArgumentsPrefix removes the leading "arguments." from a field path,
// returning the path unchanged if the prefix is absent.
func StripArgumentsPrefix(path string) string {
	return strings.TrimPrefix(path, ArgumentsPrefix)
}

// Resolve walks a dotted path (already stripped of "arguments.") through an
// arguments map, returning Null for any missing intermediate key — it never
// panics on absent keys, matching the "missing intermediate yields
// undefined" rule in spec §4.6.
func Resolve(args map[string]any, path string) Value {
	if path == "" {
		return Object(FromAny(map[string]any(args)).ObjectValue())
	}
	segments := strings.Split(path, ".")
	var current any = map[string]any(args)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return Null
		}
		next, exists := m[seg]
		if !exists {
			return Null
		}
		current = next
	}
	return FromAny(current)
}

// ResolveValue is like Resolve but walks a Value tree (used after a
// CanonicalAction has already been converted once, to avoid re-converting
// on every LOAD_ARG).
func ResolveValue(root Value, path string) Value {
	if path == "" {
		return root
	}
	current := root
	for _, seg := range strings.Split(path, ".") {
		if current.Kind() != KindObject {
			return Null
		}
		next, ok := current.ObjectValue()[seg]
		if !ok {
			return Null
		}
		current = next
	}
	return current
}
