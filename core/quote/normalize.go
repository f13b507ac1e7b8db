package quote

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is the explicit text-comparison policy used during phrase
// matching. The zero value compares exact text. Upstream note data is not
// consistent about casing, so the default policy folds case but keeps
// diacritics (Greek and Hebrew quotes carry their marks verbatim).
type Normalizer struct {
	// FoldCase lowercases both quote words and token text before comparison.
	FoldCase bool

	// StripDiacritics removes combining marks (NFD decompose, drop Mn, NFC
	// recompose) before comparison.
	StripDiacritics bool
}

// DefaultNormalizer is the policy used when no option overrides it.
var DefaultNormalizer = Normalizer{FoldCase: true}

// stripMarks removes Unicode combining marks.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Apply normalizes s under the policy.
func (n Normalizer) Apply(s string) string {
	if n.StripDiacritics {
		if out, _, err := transform.String(stripMarks, s); err == nil {
			s = out
		}
	}
	if n.FoldCase {
		s = strings.ToLower(s)
	}
	return s
}

// Equal reports whether two words compare equal under the policy.
func (n Normalizer) Equal(a, b string) bool {
	return n.Apply(a) == n.Apply(b)
}
