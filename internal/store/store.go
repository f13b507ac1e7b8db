// Package store persists corpora in SQLite and serves documents to the
// matching and alignment layers, with an LRU cache in front of the
// database so repeated scope loads stay cheap.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/FocuswithJustin/CedarLink/core/cache"
	"github.com/FocuswithJustin/CedarLink/core/errors"
	"github.com/FocuswithJustin/CedarLink/core/token"
	"github.com/FocuswithJustin/CedarLink/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS corpora (
	id        TEXT PRIMARY KEY,
	language  TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS documents (
	id        TEXT PRIMARY KEY,
	corpus_id TEXT NOT NULL REFERENCES corpora(id) ON DELETE CASCADE,
	book      TEXT NOT NULL,
	language  TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	role      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_corpus ON documents(corpus_id);
CREATE INDEX IF NOT EXISTS idx_documents_book   ON documents(book);

CREATE TABLE IF NOT EXISTS verses (
	document_id TEXT    NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chapter     INTEGER NOT NULL,
	verse       INTEGER NOT NULL,
	seq         INTEGER NOT NULL,
	tokens      TEXT    NOT NULL,
	PRIMARY KEY (document_id, chapter, verse)
);

CREATE INDEX IF NOT EXISTS idx_verses_order ON verses(document_id, seq);
`

// Store is a SQLite-backed corpus repository.
type Store struct {
	db   *sql.DB
	docs *cache.DocumentCache
	path string
}

// Open opens (or creates) a store at path. Use ":memory:" for an
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if path == ":memory:" {
		// Each pool connection gets its own in-memory database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	logging.StoreEvent("open", path)
	return &Store{
		db:   db,
		docs: cache.NewDocumentCache(cache.DefaultConfig()),
		path: path,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.docs.Clear()
	return s.db.Close()
}

// SaveCorpus stores a corpus and all of its documents, replacing any
// previous version with the same id.
func (s *Store) SaveCorpus(ctx context.Context, c *token.Corpus) error {
	if c == nil || c.ID == "" {
		return errors.NewValidation("corpus", "missing corpus id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM corpora WHERE id = ?`, c.ID); err != nil {
		return errors.Wrap(err, "replace corpus")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpora (id, language, title) VALUES (?, ?, ?)`,
		c.ID, c.Language, c.Title); err != nil {
		return errors.Wrap(err, "insert corpus")
	}

	for _, d := range c.Documents {
		if err := saveDocument(ctx, tx, c.ID, d); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit corpus")
	}

	for _, d := range c.Documents {
		s.docs.Remove(d.ID)
	}
	logging.StoreEvent("save_corpus", c.ID)
	return nil
}

func saveDocument(ctx context.Context, tx *sql.Tx, corpusID string, d *token.Document) error {
	if d.ID == "" || d.Book == "" {
		return errors.NewValidation("document", "missing document id or book")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, corpus_id, book, language, title, role)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, corpusID, d.Book, d.Language, d.Title, string(d.Role)); err != nil {
		return errors.Wrapf(err, "insert document %s", d.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM verses WHERE document_id = ?`, d.ID); err != nil {
		return errors.Wrapf(err, "clear verses for %s", d.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO verses (document_id, chapter, verse, seq, tokens) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare verse insert")
	}
	defer stmt.Close()

	for i, v := range d.Verses {
		tokens, err := json.Marshal(v.Tokens)
		if err != nil {
			return errors.Wrapf(err, "marshal tokens for %s %d:%d", d.Book, v.Chapter, v.Verse)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, v.Chapter, v.Verse, i, tokens); err != nil {
			return errors.Wrapf(err, "insert verse %s %d:%d", d.Book, v.Chapter, v.Verse)
		}
	}
	return nil
}

// LoadDocument loads a document by id, serving from the cache when possible.
func (s *Store) LoadDocument(ctx context.Context, docID string) (*token.Document, error) {
	if doc, ok := s.docs.Get(docID); ok {
		return doc, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, book, language, title, role FROM documents WHERE id = ?`, docID)

	d := &token.Document{}
	var role string
	if err := row.Scan(&d.ID, &d.Book, &d.Language, &d.Title, &role); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFound("document", docID)
		}
		return nil, errors.Wrapf(err, "load document %s", docID)
	}
	d.Role = token.Role(role)

	if err := s.loadVerses(ctx, d); err != nil {
		return nil, err
	}

	s.docs.Put(d)
	return d, nil
}

// DocumentsForBook loads every document covering the given book.
func (s *Store) DocumentsForBook(ctx context.Context, book string) ([]*token.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE book = ? ORDER BY id`, book)
	if err != nil {
		return nil, errors.Wrapf(err, "list documents for %s", book)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan document id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate documents")
	}
	if len(ids) == 0 {
		return nil, errors.NewNotFound("book", book)
	}

	docs := make([]*token.Document, 0, len(ids))
	for _, id := range ids {
		d, err := s.LoadDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// LoadCorpus reassembles a full corpus from the store.
func (s *Store) LoadCorpus(ctx context.Context, corpusID string) (*token.Corpus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, language, title FROM corpora WHERE id = ?`, corpusID)

	c := &token.Corpus{}
	if err := row.Scan(&c.ID, &c.Language, &c.Title); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFound("corpus", corpusID)
		}
		return nil, errors.Wrapf(err, "load corpus %s", corpusID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE corpus_id = ? ORDER BY id`, corpusID)
	if err != nil {
		return nil, errors.Wrapf(err, "list documents for corpus %s", corpusID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan document id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate documents")
	}

	for _, id := range ids {
		d, err := s.LoadDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		c.Documents = append(c.Documents, d)
	}
	return c, nil
}

// ListCorpora returns the ids of all stored corpora.
func (s *Store) ListCorpora(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM corpora ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list corpora")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan corpus id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCorpus removes a corpus and its documents.
func (s *Store) DeleteCorpus(ctx context.Context, corpusID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM corpora WHERE id = ?`, corpusID)
	if err != nil {
		return errors.Wrapf(err, "delete corpus %s", corpusID)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewNotFound("corpus", corpusID)
	}

	s.docs.Clear()
	logging.StoreEvent("delete_corpus", corpusID)
	return nil
}

// CacheStats reports document cache statistics.
func (s *Store) CacheStats() cache.Stats {
	return s.docs.Stats()
}

func (s *Store) loadVerses(ctx context.Context, d *token.Document) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter, verse, tokens FROM verses WHERE document_id = ? ORDER BY seq`, d.ID)
	if err != nil {
		return errors.Wrapf(err, "load verses for %s", d.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var v token.Verse
		var tokens []byte
		if err := rows.Scan(&v.Chapter, &v.Verse, &tokens); err != nil {
			return errors.Wrap(err, "scan verse")
		}
		if err := json.Unmarshal(tokens, &v.Tokens); err != nil {
			return errors.Wrapf(err, "decode tokens for %s %d:%d", d.Book, v.Chapter, v.Verse)
		}
		d.Verses = append(d.Verses, v)
	}
	return rows.Err()
}
