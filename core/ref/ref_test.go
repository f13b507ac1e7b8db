package ref

import (
	"testing"

	"github.com/FocuswithJustin/CedarLink/core/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Scope
		wantErr  bool
	}{
		{
			input: "1:3",
			expected: Scope{
				Book:         "1John",
				StartChapter: 1, StartVerse: 3,
				EndChapter: 1, EndVerse: 3,
			},
		},
		{
			input: "3:4-5",
			expected: Scope{
				Book:         "1John",
				StartChapter: 3, StartVerse: 4,
				EndChapter: 3, EndVerse: 5,
			},
		},
		{
			input: " 2:1 ",
			expected: Scope{
				Book:         "1John",
				StartChapter: 2, StartVerse: 1,
				EndChapter: 2, EndVerse: 1,
			},
		},
		// Chapter-only references are rejected, not guessed.
		{input: "3", wantErr: true},
		{input: "", wantErr: true},
		{input: "intro", wantErr: true},
		{input: "3:", wantErr: true},
		{input: ":4", wantErr: true},
		{input: "3:4-", wantErr: true},
		// Zero chapter/verse fields are validation errors.
		{input: "0:4", wantErr: true},
		{input: "3:0", wantErr: true},
		// Inverted ranges are rejected.
		{input: "3:5-4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse("1John", tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.input)
				}
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("Parse(%q) error should unwrap to ErrInvalidInput, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestScopeContains(t *testing.T) {
	s := Scope{Book: "1John", StartChapter: 1, StartVerse: 2, EndChapter: 2, EndVerse: 3}

	tests := []struct {
		chapter, verse int
		want           bool
	}{
		{1, 1, false},
		{1, 2, true},
		{1, 99, true}, // later verse in start chapter
		{2, 3, true},
		{2, 4, false},
		{3, 1, false},
	}
	for _, tt := range tests {
		if got := s.Contains(tt.chapter, tt.verse); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.chapter, tt.verse, got, tt.want)
		}
	}
}

func TestScopeString(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{Scope{Book: "Gen", StartChapter: 1, StartVerse: 1, EndChapter: 1, EndVerse: 1}, "Gen.1.1"},
		{Scope{Book: "Gen", StartChapter: 1, StartVerse: 1, EndChapter: 1, EndVerse: 3}, "Gen.1.1-3"},
		{Scope{Book: "Gen", StartChapter: 1, StartVerse: 30, EndChapter: 2, EndVerse: 2}, "Gen.1.30-2.2"},
		{Scope{StartChapter: 1, StartVerse: 1, EndChapter: 1, EndVerse: 1}, "1.1"},
	}
	for _, tt := range tests {
		if got := tt.scope.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseOccurrence(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"  ", 1, false},
		{"1", 1, false},
		{"3", 3, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"two", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOccurrence(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseOccurrence(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOccurrence(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseOccurrence(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
