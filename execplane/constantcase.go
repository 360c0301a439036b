package execplane

import "strings"

// ConstantCase normalizes a subgraph name for comparison: letters are
// upper-cased, an upper-case letter that follows a lower-case letter or a
// digit starts a new word, and runs of non-alphanumeric separators collapse
// to a single underscore. "MyApi", "my_api" and "MY-API" all normalize to
// "MY_API".
func ConstantCase(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastWasSep := true // swallow leading separators
	prevLowerOrDigit := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 32)
			lastWasSep = false
			prevLowerOrDigit = true
		case r >= 'A' && r <= 'Z':
			if prevLowerOrDigit {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			lastWasSep = false
			prevLowerOrDigit = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSep = false
			prevLowerOrDigit = true
		default:
			if !lastWasSep {
				b.WriteByte('_')
				lastWasSep = true
			}
			prevLowerOrDigit = false
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}

// sameSubgraph reports whether two subgraph names are constant-case equal.
func sameSubgraph(a, b SubgraphName) bool {
	return ConstantCase(string(a)) == ConstantCase(string(b))
}
