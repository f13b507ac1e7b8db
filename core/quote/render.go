package quote

import (
	"sort"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/CedarLink/core/token"
)

// Ellipsis marks an elided non-contiguous gap in a reconstructed quote.
const Ellipsis = "..."

// RenderSpan reconstructs display text for a set of selected tokens, used to
// show a matched phrase in a second language once alignment has mapped the
// original tokens to translated ones.
//
// Tokens are processed in ascending id order. A gap of zero or one token ids
// between consecutive selections joins with a single space. A larger gap is
// spliced verbatim when every skipped token is punctuation (a comma inside
// the quoted span reads naturally); any other gap collapses to an ellipsis.
func RenderSpan(selected, all []token.Token) string {
	if len(selected) == 0 {
		return ""
	}

	ordered := make([]token.Token, 0, len(selected))
	seen := make(map[int]bool)
	for _, t := range selected {
		if !seen[t.ID] {
			seen[t.ID] = true
			ordered = append(ordered, t)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	if len(ordered) == 1 {
		return strings.TrimSpace(ordered[0].Text)
	}

	byID := make(map[int]token.Token, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(ordered[0].Text))
	for i := 1; i < len(ordered); i++ {
		prev, next := ordered[i-1], ordered[i]
		gap := next.ID - prev.ID - 1

		switch {
		case gap <= 1:
			sb.WriteString(" ")
		default:
			skipped := skippedTokens(byID, prev.ID, next.ID)
			if len(skipped) > 0 && allPunctuation(skipped) {
				for _, t := range skipped {
					sb.WriteString(t.Text)
				}
			} else {
				sb.WriteString(" " + Ellipsis + " ")
			}
		}
		sb.WriteString(strings.TrimSpace(next.Text))
	}
	return sb.String()
}

// skippedTokens collects the tokens with ids strictly between lo and hi.
func skippedTokens(byID map[int]token.Token, lo, hi int) []token.Token {
	var out []token.Token
	for id := lo + 1; id < hi; id++ {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// allPunctuation reports whether every token is punctuation or the whitespace
// around it. Classification by kind first, then a conservative character
// class for loaders that did not classify.
func allPunctuation(tokens []token.Token) bool {
	for _, t := range tokens {
		switch t.Kind {
		case token.Punctuation, token.Whitespace:
			continue
		}
		if !isPunctText(t.Text) {
			return false
		}
	}
	return true
}

// isPunctText reports whether s consists solely of punctuation and spaces.
func isPunctText(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
