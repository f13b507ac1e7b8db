package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/CedarLink/core/errors"
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
		}, {
			ID:   "ULT-1JN",
			Book: "1John",
			Role: token.RoleTranslation,
			Verses: []token.Verse{{
				Chapter: 1, Verse: 2,
				Tokens: []token.Token{
					{ID: 1, Text: "And", Kind: token.Word, AlignedTo: []int{1}},
				},
			}},
		}},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadCorpus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveCorpus(ctx, testCorpus()); err != nil {
		t.Fatalf("SaveCorpus failed: %v", err)
	}

	c, err := s.LoadCorpus(ctx, "UGNT")
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if len(c.Documents) != 2 {
		t.Fatalf("len(Documents) = %d, want 2", len(c.Documents))
	}

	doc := c.Document("1John")
	if doc == nil {
		t.Fatal("loaded corpus missing 1John")
	}
	tok, ok := doc.TokenByID(3)
	if !ok || tok.Text != "ἡμεῖς" || len(tok.AlignedTo) != 1 {
		t.Errorf("token 3 = %+v, want ἡμεῖς aligned to one id", tok)
	}
}

func TestSaveCorpusReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveCorpus(ctx, testCorpus()); err != nil {
		t.Fatalf("SaveCorpus failed: %v", err)
	}

	c := testCorpus()
	c.Title = "Updated"
	c.Documents = c.Documents[:1]
	if err := s.SaveCorpus(ctx, c); err != nil {
		t.Fatalf("second SaveCorpus failed: %v", err)
	}

	back, err := s.LoadCorpus(ctx, "UGNT")
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if back.Title != "Updated" || len(back.Documents) != 1 {
		t.Errorf("corpus = %q with %d documents, want Updated with 1", back.Title, len(back.Documents))
	}
}

func TestLoadDocumentCaches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveCorpus(ctx, testCorpus()); err != nil {
		t.Fatalf("SaveCorpus failed: %v", err)
	}

	if _, err := s.LoadDocument(ctx, "UGNT-1JN"); err != nil {
		t.Fatalf("first LoadDocument failed: %v", err)
	}
	if _, err := s.LoadDocument(ctx, "UGNT-1JN"); err != nil {
		t.Fatalf("second LoadDocument failed: %v", err)
	}

	if hits := s.CacheStats().Hits; hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
}

func TestDocumentsForBook(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveCorpus(ctx, testCorpus()); err != nil {
		t.Fatalf("SaveCorpus failed: %v", err)
	}

	docs, err := s.DocumentsForBook(ctx, "1John")
	if err != nil {
		t.Fatalf("DocumentsForBook failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2", len(docs))
	}

	if _, err := s.DocumentsForBook(ctx, "Jude"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing book error = %v, want ErrNotFound", err)
	}
}

func TestNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadDocument(ctx, "nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("LoadDocument error = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadCorpus(ctx, "nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("LoadCorpus error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteCorpus(ctx, "nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("DeleteCorpus error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCorpus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveCorpus(ctx, testCorpus()); err != nil {
		t.Fatalf("SaveCorpus failed: %v", err)
	}
	if err := s.DeleteCorpus(ctx, "UGNT"); err != nil {
		t.Fatalf("DeleteCorpus failed: %v", err)
	}

	if _, err := s.LoadDocument(ctx, "UGNT-1JN"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("document should be gone after corpus delete, got %v", err)
	}

	ids, err := s.ListCorpora(ctx)
	if err != nil {
		t.Fatalf("ListCorpora failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ListCorpora = %v, want empty", ids)
	}
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpora.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SaveCorpus(context.Background(), testCorpus()); err != nil {
		t.Fatalf("SaveCorpus failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	c, err := s2.LoadCorpus(context.Background(), "UGNT")
	if err != nil {
		t.Fatalf("LoadCorpus after reopen failed: %v", err)
	}
	if c.ID != "UGNT" {
		t.Errorf("corpus ID = %q, want UGNT", c.ID)
	}
}
