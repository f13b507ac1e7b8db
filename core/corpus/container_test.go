package corpus

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/CedarLink/core/token"
)

func testCorpus() *token.Corpus {
	return &token.Corpus{
		ID:       "UGNT",
		Language: "grc",
		Title:    "Greek New Testament",
		Documents: []*token.Document{{
			ID:   "UGNT-1JN",
			Book: "1John",
			Role: token.RoleOriginal,
			Verses: []token.Verse{{
				Chapter: 1, Verse: 2,
				Tokens: []token.Token{
					{ID: 1, Text: "καὶ", Kind: token.Word, Strongs: "G2532", Lemma: "καί"},
					{ID: 2, Text: " ", Kind: token.Whitespace},
					{ID: 3, Text: "ἡμεῖς", Kind: token.Word, AlignedTo: []int{100}},
				},
			}},
		}},
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(testCorpus(), &buf); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	c, m, err := Unpack(&buf)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if m.CorpusID != "UGNT" || m.DocumentCount != 1 {
		t.Errorf("manifest = %+v, want UGNT with 1 document", m)
	}
	if m.FormatVersion != FormatVersion {
		t.Errorf("FormatVersion = %d, want %d", m.FormatVersion, FormatVersion)
	}

	doc := c.Document("1John")
	if doc == nil {
		t.Fatal("unpacked corpus missing 1John")
	}
	tok, ok := doc.TokenByID(3)
	if !ok || tok.Text != "ἡμεῖς" || tok.AlignedTo[0] != 100 {
		t.Errorf("token 3 = %+v, want ἡμεῖς aligned to 100", tok)
	}
}

func TestPackFileVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ugnt.clc")
	if err := PackFile(testCorpus(), path); err != nil {
		t.Fatalf("PackFile failed: %v", err)
	}

	m, err := VerifyFile(path)
	if err != nil {
		t.Fatalf("VerifyFile failed: %v", err)
	}
	if m.BLAKE3 == "" || m.UncompressedSize == 0 {
		t.Errorf("manifest digest fields empty: %+v", m)
	}

	c, _, err := UnpackFile(path)
	if err != nil {
		t.Fatalf("UnpackFile failed: %v", err)
	}
	if c.ID != "UGNT" {
		t.Errorf("corpus ID = %q, want UGNT", c.ID)
	}
}

func TestUnpackDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(testCorpus(), &buf); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	data := buf.Bytes()
	// Corrupt the manifest digest so the body no longer matches.
	idx := bytes.Index(data, []byte(`"blake3":"`))
	if idx < 0 {
		t.Fatal("manifest digest not found in container")
	}
	pos := idx + len(`"blake3":"`)
	if data[pos] == '0' {
		data[pos] = '1'
	} else {
		data[pos] = '0'
	}

	if _, _, err := Unpack(bytes.NewReader(data)); err == nil {
		t.Error("Unpack should detect a digest mismatch")
	}
}

func TestReadManifestRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("NOTACORP\x00\x00\x00\x02{}")},
		{"truncated", []byte("CLCORP1\n\x00\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadManifest(bytes.NewReader(tt.data)); err == nil {
				t.Error("ReadManifest should fail")
			}
		})
	}
}

func TestPackNilCorpus(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(nil, &buf); err == nil {
		t.Error("Pack(nil) should fail")
	}
}
