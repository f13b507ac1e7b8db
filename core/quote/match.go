// Package quote resolves textual quotes from translator notes to exact token
// spans inside tokenized verses.
//
// A quote is an ordered list of segments separated by the literal delimiter
// " & ". Each segment is a whitespace-delimited word phrase matched against
// contiguous runs of word tokens. Segments are searched independently with a
// monotonically advancing cursor, which is what makes non-contiguous
// multi-word quotes resolvable while staying deterministic and
// occurrence-stable.
package quote

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/CedarLink/core/errors"
	"github.com/FocuswithJustin/CedarLink/core/ref"
	"github.com/FocuswithJustin/CedarLink/core/token"
)

// SegmentDelimiter separates the word groups of a multi-part quote.
const SegmentDelimiter = " & "

// MatchSegment is one resolved word group of a quote: a contiguous token span
// within a single verse.
type MatchSegment struct {
	// Text is the segment's raw text as it appeared in the quote.
	Text string `json:"text"`

	// VerseRef is the OSIS-style reference of the containing verse.
	VerseRef string `json:"verse_ref"`

	// StartTokenIndex/EndTokenIndex are inclusive positions within the
	// verse's matchable word sequence.
	StartTokenIndex int `json:"start_token_index"`
	EndTokenIndex   int `json:"end_token_index"`

	// Tokens is the contiguous matched span; non-empty on success.
	Tokens []token.Token `json:"tokens"`
}

// Result is the outcome of one quote resolution. It is created per request,
// immutable, and never cached across navigation.
type Result struct {
	// Success is true when every segment resolved.
	Success bool `json:"success"`

	// Matches holds one MatchSegment per input segment, in quote order.
	Matches []MatchSegment `json:"matches,omitempty"`

	// TotalTokens is the position-sorted, id-deduplicated union of all
	// matched tokens across segments.
	TotalTokens []token.Token `json:"total_tokens,omitempty"`

	// Err explains which segment/occurrence could not be located. Resolution
	// failures are reportable, non-fatal outcomes, not thrown errors.
	Err string `json:"error,omitempty"`
}

// Option configures a resolution request.
type Option func(*config)

type config struct {
	normalizer Normalizer
}

// WithNormalizer overrides the default comparison policy.
func WithNormalizer(n Normalizer) Option {
	return func(c *config) { c.normalizer = n }
}

// failure builds a failed Result.
func failure(msg string) Result {
	return Result{Success: false, Err: msg}
}

// scopeWord is one matchable token flattened into scope order.
type scopeWord struct {
	tok      token.Token
	verseIdx int // index into the scope's verse list
	pos      int // position within the verse's word sequence
	norm     string
}

// candidate is one contiguous run matching a segment.
type candidate struct {
	verseIdx    int
	startPos    int
	endPos      int
	globalStart int // flattened index of the first word
	globalEnd   int // flattened index of the last word
}

// Resolve locates the token span(s) a quote refers to inside the scope.
//
// Validation errors (quote too short, invalid occurrence, invalid reference)
// and resolution failures (phrase or occurrence not present) are both
// reported as a failed Result, never as a panic; a single note's failure must
// not prevent other notes from being matched.
func Resolve(scope ref.Scope, rawQuote string, occurrence int, verses token.VerseProvider, opts ...Option) Result {
	cfg := config{normalizer: DefaultNormalizer}
	for _, opt := range opts {
		opt(&cfg)
	}

	trimmed := strings.TrimSpace(rawQuote)
	if len([]rune(trimmed)) < 2 {
		return failure("quote too short")
	}
	if occurrence < 1 {
		return failure("invalid occurrence")
	}
	if err := scope.Validate(); err != nil {
		return failure("invalid reference")
	}

	segments := splitSegments(trimmed, cfg.normalizer)
	if len(segments) == 0 {
		return failure("quote too short")
	}

	inScope := verses.Verses(scope.Book, scope.StartChapter, scope.StartVerse, scope.EndChapter, scope.EndVerse)

	// Flatten the scope's matchable tokens in document order.
	var words []scopeWord
	verseWords := make([][]token.Token, len(inScope))
	for vi := range inScope {
		vw := inScope[vi].Words()
		verseWords[vi] = vw
		for pos, t := range vw {
			words = append(words, scopeWord{
				tok:      t,
				verseIdx: vi,
				pos:      pos,
				norm:     cfg.normalizer.Apply(t.Text),
			})
		}
	}

	// Per-segment candidate scan, document order across the whole scope.
	candidates := make([][]candidate, len(segments))
	for si, seg := range segments {
		candidates[si] = scanSegment(seg, words, verseWords)
	}

	// Sequential occurrence resolution: the combination produced on the
	// occurrence-th repetition of the whole procedure is the selected match.
	var selected []candidate
	cursor := 0
	for rep := 0; rep < occurrence; rep++ {
		combo := make([]candidate, len(segments))
		for si := range segments {
			c, ok := nextCandidate(candidates[si], cursor)
			if !ok {
				return failure(errors.NewResolution(segments[si].text, si+1, occurrence, scope.String()).Error())
			}
			combo[si] = c
			cursor = c.globalEnd + 1
		}
		selected = combo
	}

	result := Result{Success: true}
	for si, c := range selected {
		v := inScope[c.verseIdx]
		span := verseWords[c.verseIdx][c.startPos : c.endPos+1]
		result.Matches = append(result.Matches, MatchSegment{
			Text:            segments[si].text,
			VerseRef:        ref.VerseRef(scope.Book, v.Chapter, v.Verse),
			StartTokenIndex: c.startPos,
			EndTokenIndex:   c.endPos,
			Tokens:          append([]token.Token(nil), span...),
		})
	}
	result.TotalTokens = dedupeTokens(result.Matches)
	return result
}

// segment is one pre-normalized word phrase of a quote.
type segment struct {
	text  string
	words []string // normalized
}

// splitSegments splits a quote on the segment delimiter, then each segment
// into normalized words on whitespace. Empty segments are dropped.
func splitSegments(trimmed string, n Normalizer) []segment {
	var out []segment
	for _, part := range strings.Split(trimmed, SegmentDelimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		words := make([]string, len(fields))
		for i, f := range fields {
			words[i] = n.Apply(f)
		}
		out = append(out, segment{text: part, words: words})
	}
	return out
}

// scanSegment finds every contiguous run of verse words equal to the
// segment's word list. Runs never cross a verse boundary.
func scanSegment(seg segment, words []scopeWord, verseWords [][]token.Token) []candidate {
	var out []candidate
	n := len(seg.words)
	if n == 0 {
		return out
	}
	for gi := 0; gi+n <= len(words); gi++ {
		first := words[gi]
		// The run must stay within one verse.
		if first.pos+n > len(verseWords[first.verseIdx]) {
			continue
		}
		matched := true
		for wi := 0; wi < n; wi++ {
			if words[gi+wi].norm != seg.words[wi] {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, candidate{
				verseIdx:    first.verseIdx,
				startPos:    first.pos,
				endPos:      first.pos + n - 1,
				globalStart: gi,
				globalEnd:   gi + n - 1,
			})
		}
	}
	return out
}

// nextCandidate returns the first candidate starting at or after the cursor.
func nextCandidate(cands []candidate, cursor int) (candidate, bool) {
	for _, c := range cands {
		if c.globalStart >= cursor {
			return c, true
		}
	}
	return candidate{}, false
}

// dedupeTokens builds the id-deduplicated, position-sorted union of all
// matched tokens. Token ids increase in document order, so id order is
// position order.
func dedupeTokens(matches []MatchSegment) []token.Token {
	seen := make(map[int]bool)
	var out []token.Token
	for _, m := range matches {
		for _, t := range m.Tokens {
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
