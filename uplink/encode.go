package uplink

import (
	"fmt"
	"strings"
)

// isURIUnreserved reports whether b is one of the characters
// encodeURIComponent-style escaping leaves untouched. This mirrors the escaping semantics the upstream registry
// protocol actually uses (full percent-encoding of path-unsafe bytes,
// including '@' and '/'), which is stricter than net/url's PathEscape.
func isURIUnreserved(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '!' || b == '~' || b == '*' || b == '\'' || b == '(' || b == ')':
		return true
	default:
		return false
	}
}

// encodePackageName percent-encodes name for inclusion in a URL path,
// escaping every byte outside the unreserved set (including '@' and '/'),
// except that a leading %40 (the escaped form of '@') is then un-escaped
// back to a literal '@' so scoped packages round-trip as "@scope%2Fpkg"
// rather than "%40scope%2Fpkg".
func encodePackageName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	escaped := b.String()

	const escapedAt = "%40"
	if strings.HasPrefix(escaped, escapedAt) {
		escaped = "@" + escaped[len(escapedAt):]
	}
	return escaped
}
