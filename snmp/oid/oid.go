// Package oid provides helpers for dotted numeric SNMP object identifiers.
//
// All OIDs handled by switchdiag are kept in canonical form: no leading dot,
// no surrounding whitespace, e.g. "1.3.6.1.2.1.2.2.1.2.1". gosnmp returns
// names with a leading dot, so every value crossing the session boundary is
// passed through Normalize.
package oid

import (
	"strconv"
	"strings"
)

// Normalize strips surrounding whitespace and a single leading dot.
func Normalize(oid string) string {
	oid = strings.TrimSpace(oid)
	return strings.TrimPrefix(oid, ".")
}

// Join appends suffix components to root, e.g. Join("1.3.6.1.2.1.2.2.1.2", "7").
func Join(root string, suffix ...string) string {
	parts := make([]string, 0, len(suffix)+1)
	parts = append(parts, Normalize(root))
	for _, s := range suffix {
		if s = Normalize(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// IsUnder reports whether oid is a strict descendant of root. The comparison is
// component-wise, so "1.3.6.1.2.1.2.2.1.10.1" is not under "1.3.6.1.2.1.2.2.1.1".
func IsUnder(oid, root string) bool {
	oid, root = Normalize(oid), Normalize(root)
	if root == "" {
		return oid != ""
	}
	return len(oid) > len(root) && strings.HasPrefix(oid, root) && oid[len(root)] == '.'
}

// TrailingIndex returns the final dot-separated component of oid. The second
// result is false when the component is missing or not numeric.
func TrailingIndex(oid string) (string, bool) {
	oid = Normalize(oid)
	dot := strings.LastIndexByte(oid, '.')
	last := oid[dot+1:]
	if last == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(last, 10, 32); err != nil {
		return "", false
	}
	return last, true
}

// Suffix returns the components of oid that follow root, or "" when oid is not
// under root.
func Suffix(oid, root string) string {
	if !IsUnder(oid, root) {
		return ""
	}
	return Normalize(oid)[len(Normalize(root))+1:]
}

// Compare orders two OIDs numerically, component by component. A proper prefix
// sorts before its descendants. Non-numeric components compare as strings so
// that malformed input still yields a total order.
func Compare(a, b string) int {
	as := strings.Split(Normalize(a), ".")
	bs := strings.Split(Normalize(b), ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareComponent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func compareComponent(a, b string) int {
	ai, aerr := strconv.ParseUint(a, 10, 64)
	bi, berr := strconv.ParseUint(b, 10, 64)
	if aerr != nil || berr != nil {
		return strings.Compare(a, b)
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

// Valid reports whether oid consists of at least two numeric components.
func Valid(oid string) bool {
	oid = Normalize(oid)
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 32); err != nil {
			return false
		}
	}
	return true
}
