// Package token defines the tokenized verse data model shared by the quote
// matcher, alignment index, and highlight registry.
//
// Tokens are produced by an ingestion pipeline outside this module and are
// immutable once loaded. Every format loader should import these types rather
// than defining its own.
package token

import "strings"

// Kind represents the classification of a token.
type Kind string

// Token kind constants.
const (
	Word            Kind = "word"
	Number          Kind = "number"
	Punctuation     Kind = "punctuation"
	Whitespace      Kind = "whitespace"
	ParagraphMarker Kind = "paragraph"
)

// validKinds is the set of valid token kinds.
var validKinds = map[Kind]bool{
	Word:            true,
	Number:          true,
	Punctuation:     true,
	Whitespace:      true,
	ParagraphMarker: true,
}

// IsValid returns true if the kind is a known token classification.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// Role indicates how a document participates in alignment.
type Role string

// Document role constants.
const (
	// RoleOriginal marks the canonical source-language text (e.g., UGNT, UHB).
	RoleOriginal Role = "original"
	// RoleTranslation marks a translated text whose tokens carry AlignedTo ids.
	RoleTranslation Role = "translation"
)

// Token is the smallest addressable unit of verse text.
//
// IDs are unique within a document and monotonically increasing across
// chapters and verses, so id order is document order.
type Token struct {
	// ID is the stable numeric identity within the document.
	ID int `json:"id"`

	// Text is the token text.
	Text string `json:"text"`

	// Kind is the token classification.
	Kind Kind `json:"kind"`

	// AlignedTo lists original-language token ids this token translates.
	// Populated by ingestion for translation documents; for original-language
	// documents it names shared alignment group ids (many-to-one groupings).
	AlignedTo []int `json:"aligned_to,omitempty"`

	// Strongs is the Strong's number (optional, e.g., "G3140").
	Strongs string `json:"strongs,omitempty"`

	// Lemma is the dictionary form (optional).
	Lemma string `json:"lemma,omitempty"`
}

// IsWord returns true if this token is a word token.
func (t Token) IsWord() bool {
	return t.Kind == Word
}

// Matchable returns true if this token participates in phrase matching.
// Whitespace and paragraph markers are retained for reconstruction only.
func (t Token) Matchable() bool {
	return t.Kind == Word || t.Kind == Number || t.Kind == Punctuation
}

// Verse is an ordered sequence of tokens within one chapter/verse.
type Verse struct {
	Chapter int     `json:"chapter"`
	Verse   int     `json:"verse"`
	Tokens  []Token `json:"tokens"`
}

// Words returns the verse's non-whitespace token sequence in order: the
// sequence phrase matching runs against. Whitespace and paragraph markers are
// retained on the verse for reconstruction only.
func (v *Verse) Words() []Token {
	out := make([]Token, 0, len(v.Tokens))
	for _, t := range v.Tokens {
		if t.Matchable() {
			out = append(out, t)
		}
	}
	return out
}

// Text reconstructs the verse's surface text from all tokens.
func (v *Verse) Text() string {
	var sb strings.Builder
	for _, t := range v.Tokens {
		if t.Kind == ParagraphMarker {
			continue
		}
		sb.WriteString(t.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Document is one book of a language-tagged resource.
type Document struct {
	// ID is the document identifier (e.g., "UGNT-1JN").
	ID string `json:"id"`

	// Book is the OSIS book ID (e.g., "Gen", "Matt", "1John").
	Book string `json:"book"`

	// Language is the BCP-47 language tag (e.g., "en", "grc", "hbo").
	Language string `json:"language,omitempty"`

	// Role indicates whether this is original or translated text.
	Role Role `json:"role"`

	// Title is the human-readable title (optional).
	Title string `json:"title,omitempty"`

	// Verses contains the tokenized verses in document order.
	Verses []Verse `json:"verses"`
}

// Verse returns the verse with the given chapter and verse number, or nil.
func (d *Document) Verse(chapter, verse int) *Verse {
	for i := range d.Verses {
		v := &d.Verses[i]
		if v.Chapter == chapter && v.Verse == verse {
			return v
		}
	}
	return nil
}

// TokenByID returns the token with the given id, or false if absent.
func (d *Document) TokenByID(id int) (Token, bool) {
	for i := range d.Verses {
		for _, t := range d.Verses[i].Tokens {
			if t.ID == id {
				return t, true
			}
		}
	}
	return Token{}, false
}

// AllTokens returns every token in the document in id order.
func (d *Document) AllTokens() []Token {
	var out []Token
	for i := range d.Verses {
		out = append(out, d.Verses[i].Tokens...)
	}
	return out
}

// Corpus is the top-level container for a set of aligned documents.
type Corpus struct {
	// ID is the unique identifier for this corpus (e.g., "UGNT", "ULT").
	ID string `json:"id"`

	// Version is the schema version (e.g., "1.0.0").
	Version string `json:"version,omitempty"`

	// Language is the BCP-47 language tag for the corpus as a whole.
	Language string `json:"language,omitempty"`

	// Title is the human-readable title of the corpus.
	Title string `json:"title,omitempty"`

	// Documents contains all books in this corpus.
	Documents []*Document `json:"documents,omitempty"`
}

// Document returns the document for the given book, or nil.
func (c *Corpus) Document(book string) *Document {
	for _, d := range c.Documents {
		if d.Book == book {
			return d
		}
	}
	return nil
}
