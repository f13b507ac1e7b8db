package token

// VerseProvider supplies tokenized verses to the quote matcher. Implementations
// include in-memory documents, the sqlite-backed store, and test fixtures.
type VerseProvider interface {
	// Verses returns the verses in the inclusive range, in document order.
	// A missing verse is simply absent from the result; "no tokens available
	// for this scope" is an empty slice, not an error.
	Verses(book string, startChapter, startVerse, endChapter, endVerse int) []Verse
}

// DocumentProvider adapts a Document to the VerseProvider interface.
type DocumentProvider struct {
	Doc *Document
}

// Verses implements VerseProvider.
func (p DocumentProvider) Verses(book string, startChapter, startVerse, endChapter, endVerse int) []Verse {
	if p.Doc == nil || (book != "" && p.Doc.Book != book) {
		return nil
	}
	var out []Verse
	for _, v := range p.Doc.Verses {
		if inRange(v.Chapter, v.Verse, startChapter, startVerse, endChapter, endVerse) {
			out = append(out, v)
		}
	}
	return out
}

// inRange reports whether chapter:verse falls inside the inclusive range.
func inRange(chapter, verse, sc, sv, ec, ev int) bool {
	if chapter < sc || chapter > ec {
		return false
	}
	if chapter == sc && verse < sv {
		return false
	}
	if chapter == ec && verse > ev {
		return false
	}
	return true
}
