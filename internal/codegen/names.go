package codegen

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// UnitName is the fully qualified name of a generated execution unit.
type UnitName string

// String returns the name.
func (n UnitName) String() string {
	return string(n)
}

// NameAuthority issues unit names that never repeat within one session.
//
// Names have the form <prefix><category>.<hint>_<n>, where category and hint
// are reduced to identifier characters and n counts per (category, hint)
// from zero. Issuing is not a lookup: the same inputs always yield a new name.
type NameAuthority struct {
	prefix   string
	counters map[nameKey]int
	issued   int
}

type nameKey struct {
	category string
	hint     string
}

// NewNameAuthority creates an authority whose names all start with prefix.
func NewNameAuthority(prefix string) *NameAuthority {
	return &NameAuthority{
		prefix:   prefix,
		counters: make(map[nameKey]int),
	}
}

// Issue returns a name distinct from every name this authority issued before.
// Empty category or hint fails with ErrInvalidArgument.
func (a *NameAuthority) Issue(category, hint string) (UnitName, error) {
	if category == "" {
		return "", fmt.Errorf("%w: unit category must not be empty", ErrInvalidArgument)
	}
	if hint == "" {
		return "", fmt.Errorf("%w: unit name hint must not be empty", ErrInvalidArgument)
	}

	key := nameKey{category: identifier(category), hint: identifier(hint)}
	n := a.counters[key]
	a.counters[key] = n + 1
	a.issued++

	// Neither segment contains '.', and n is digits only, so the last '_'
	// always splits hint from counter and no two keys produce one name.
	return UnitName(fmt.Sprintf("%s%s.%s_%d", a.prefix, key.category, key.hint, n)), nil
}

// Issued returns how many names have been issued.
func (a *NameAuthority) Issued() int {
	return a.issued
}

// identifier reduces s to letters, digits, and underscores.
func identifier(s string) string {
	var b strings.Builder
	for i, r := range norm.NFC.String(s) {
		switch {
		case unicode.IsLetter(r), r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
