// Package align provides bidirectional lookup between original-language
// tokens and the translated-language tokens aligned to them, across all
// currently loaded resources.
//
// The index is an explicitly owned handle scoped to the currently displayed
// document set. Panes receive it by injection; there is no package-level
// instance.
package align

import (
	"sort"

	"github.com/FocuswithJustin/CedarLink/core/token"
)

// Index holds alignment lookups for a set of loaded documents.
type Index struct {
	roles map[string]token.Role

	// groupMembers maps, per original-language document, an alignment group
	// id to the original token ids sharing it (many-to-one groupings: one
	// translated word covering two original words).
	groupMembers map[string]map[int][]int

	// tokenGroups maps, per original-language document, a token id to the
	// group ids its alignment list names.
	tokenGroups map[string]map[int][]int

	// translations maps an original token id to the translated token ids
	// aligned to it, per translation document.
	translations map[int]map[string][]int
}

// NewIndex creates an empty alignment index.
func NewIndex() *Index {
	return &Index{
		roles:        make(map[string]token.Role),
		groupMembers: make(map[string]map[int][]int),
		tokenGroups:  make(map[string]map[int][]int),
		translations: make(map[int]map[string][]int),
	}
}

// AddDocument indexes a loaded document. Translated documents contribute
// their tokens' AlignedTo lists (original token ids); original documents
// contribute shared alignment group ids.
func (ix *Index) AddDocument(doc *token.Document) {
	if doc == nil {
		return
	}
	ix.roles[doc.ID] = doc.Role

	switch doc.Role {
	case token.RoleOriginal:
		members := make(map[int][]int)
		groups := make(map[int][]int)
		for _, t := range doc.AllTokens() {
			for _, g := range t.AlignedTo {
				members[g] = append(members[g], t.ID)
				groups[t.ID] = append(groups[t.ID], g)
			}
		}
		ix.groupMembers[doc.ID] = members
		ix.tokenGroups[doc.ID] = groups

	case token.RoleTranslation:
		for _, t := range doc.AllTokens() {
			for _, orig := range t.AlignedTo {
				m := ix.translations[orig]
				if m == nil {
					m = make(map[string][]int)
					ix.translations[orig] = m
				}
				m[doc.ID] = append(m[doc.ID], t.ID)
			}
		}
	}
}

// RemoveDocument drops a document's contributions, used when a resource pane
// unloads a book.
func (ix *Index) RemoveDocument(docID string) {
	delete(ix.roles, docID)
	delete(ix.groupMembers, docID)
	delete(ix.tokenGroups, docID)
	for orig, m := range ix.translations {
		delete(m, docID)
		if len(m) == 0 {
			delete(ix.translations, orig)
		}
	}
}

// AlignedIDs returns the original-language token ids a token stands for.
//
// For an original-language token the set is itself plus every token in the
// same document whose alignment list names a shared group id. For a
// translated token it is the contents of its own AlignedTo field.
func (ix *Index) AlignedIDs(docID string, tok token.Token) []int {
	switch ix.roles[docID] {
	case token.RoleTranslation:
		out := append([]int(nil), tok.AlignedTo...)
		sort.Ints(out)
		return out

	default:
		set := map[int]bool{tok.ID: true}
		groups := ix.tokenGroups[docID][tok.ID]
		for _, g := range groups {
			for _, id := range ix.groupMembers[docID][g] {
				set[id] = true
			}
		}
		out := make([]int, 0, len(set))
		for id := range set {
			out = append(out, id)
		}
		sort.Ints(out)
		return out
	}
}

// ShouldHighlight reports whether a token renders highlighted for the target
// original-language token id. Computed symmetrically so that clicking in
// either language direction works identically.
func (ix *Index) ShouldHighlight(docID string, tok token.Token, targetID int) bool {
	for _, id := range ix.AlignedIDs(docID, tok) {
		if id == targetID {
			return true
		}
	}
	return false
}

// TranslationsOf returns, per translation document, the translated token ids
// aligned to the given original token id.
func (ix *Index) TranslationsOf(originalID int) map[string][]int {
	m := ix.translations[originalID]
	if m == nil {
		return nil
	}
	out := make(map[string][]int, len(m))
	for doc, ids := range m {
		cp := append([]int(nil), ids...)
		sort.Ints(cp)
		out[doc] = cp
	}
	return out
}
