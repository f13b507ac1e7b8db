// Package ref parses note reference strings and represents quote scopes.
//
// Notes and questions attach to references of the form "chapter:verse" or
// "chapter:verse-verse" (e.g., "1:3", "3:4-5"). Chapter-only or malformed
// strings are rejected, not guessed.
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/CedarLink/core/errors"
)

// Scope defines the inclusive verse range a quote is searched in.
type Scope struct {
	// Book is the OSIS book ID (e.g., "Gen", "1John").
	Book string `json:"book"`

	// StartChapter/StartVerse mark the first verse of the range (1-indexed).
	StartChapter int `json:"start_chapter"`
	StartVerse   int `json:"start_verse"`

	// EndChapter/EndVerse mark the last verse of the range (inclusive).
	EndChapter int `json:"end_chapter"`
	EndVerse   int `json:"end_verse"`
}

// refGrammar is the participle grammar for note references.
// Examples: "1:3", "3:4-5"
//
//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Chapter int        `parser:"@Int"`
	Verse   *versePart `parser:"':' @@"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type versePart struct {
	Start int  `parser:"@Int"`
	End   *int `parser:"( '-' @Int )?"`
}

// refLexer defines the lexer for note references.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// refParser is the participle parser for note references.
var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a note reference string into a Scope for the given book.
// Supported formats:
//   - "3:4" (single verse)
//   - "3:4-6" (verse range within one chapter)
func Parse(book, s string) (Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Scope{}, errors.NewParse("reference", "", "empty reference string")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Scope{}, &errors.ParseError{
			Format:  "reference",
			Message: fmt.Sprintf("invalid reference format: %q", s),
			Err:     err,
		}
	}

	scope := Scope{
		Book:         book,
		StartChapter: parsed.Chapter,
		StartVerse:   parsed.Verse.Start,
		EndChapter:   parsed.Chapter,
		EndVerse:     parsed.Verse.Start,
	}
	if parsed.Verse.End != nil {
		scope.EndVerse = *parsed.Verse.End
	}

	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// Validate checks that the scope's chapter/verse fields are resolvable
// positive integers and that the range is not inverted.
func (s Scope) Validate() error {
	if s.StartChapter < 1 || s.EndChapter < 1 {
		return errors.NewValidation("chapter", "must be a positive integer")
	}
	if s.StartVerse < 1 || s.EndVerse < 1 {
		return errors.NewValidation("verse", "must be a positive integer")
	}
	if s.EndChapter < s.StartChapter {
		return errors.NewValidation("reference", "end chapter precedes start chapter")
	}
	if s.StartChapter == s.EndChapter && s.EndVerse < s.StartVerse {
		return errors.NewValidation("reference", "end verse precedes start verse")
	}
	return nil
}

// IsRange returns true if this scope spans multiple verses.
func (s Scope) IsRange() bool {
	return s.StartChapter != s.EndChapter || s.StartVerse != s.EndVerse
}

// Contains returns true if chapter:verse falls inside the scope.
func (s Scope) Contains(chapter, verse int) bool {
	if chapter < s.StartChapter || chapter > s.EndChapter {
		return false
	}
	if chapter == s.StartChapter && verse < s.StartVerse {
		return false
	}
	if chapter == s.EndChapter && verse > s.EndVerse {
		return false
	}
	return true
}

// String returns the OSIS-style representation of the scope.
func (s Scope) String() string {
	var sb strings.Builder
	if s.Book != "" {
		sb.WriteString(s.Book)
		sb.WriteString(".")
	}
	sb.WriteString(strconv.Itoa(s.StartChapter))
	sb.WriteString(".")
	sb.WriteString(strconv.Itoa(s.StartVerse))

	if s.IsRange() {
		sb.WriteString("-")
		if s.EndChapter != s.StartChapter {
			sb.WriteString(strconv.Itoa(s.EndChapter))
			sb.WriteString(".")
		}
		sb.WriteString(strconv.Itoa(s.EndVerse))
	}
	return sb.String()
}

// VerseRef returns the OSIS-style reference for one verse inside a book.
func VerseRef(book string, chapter, verse int) string {
	if book == "" {
		return fmt.Sprintf("%d.%d", chapter, verse)
	}
	return fmt.Sprintf("%s.%d.%d", book, chapter, verse)
}

// ParseOccurrence parses the string form of an occurrence selector.
// Empty or missing input defaults to 1; a non-empty value that is not a
// positive integer is a validation error, never a silent default.
func ParseOccurrence(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &errors.ValidationError{
			Field:   "occurrence",
			Value:   s,
			Message: "must be a positive integer",
			Err:     err,
		}
	}
	if n < 1 {
		return 0, &errors.ValidationError{
			Field:   "occurrence",
			Value:   s,
			Message: "must be a positive integer",
		}
	}
	return n, nil
}
