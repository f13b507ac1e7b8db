// Command cedarlink is the CLI tool for CedarLink.
// It provides commands for importing corpora, resolving note quotes, and
// running the pane broadcast server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/CedarLink/core/corpus"
	"github.com/FocuswithJustin/CedarLink/core/quote"
	"github.com/FocuswithJustin/CedarLink/core/ref"
	"github.com/FocuswithJustin/CedarLink/core/token"
	"github.com/FocuswithJustin/CedarLink/internal/bus"
	"github.com/FocuswithJustin/CedarLink/internal/logging"
	"github.com/FocuswithJustin/CedarLink/internal/store"
)

const version = "0.1.0"

// CLI defines the command-line interface for cedarlink.
var CLI struct {
	// Global flags
	DB       string `name:"db" help:"Corpus database path" default:"cedarlink.db" type:"path"`
	LogLevel string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	LogText  bool   `name:"log-text" help:"Log in human-readable text instead of JSON"`

	// Command groups (noun-first organization)
	Corpus  CorpusGroup `cmd:"" help:"Corpus operations (import, pack, unpack, verify, list, delete)"`
	Resolve ResolveCmd  `cmd:"" help:"Resolve a note quote against a verse range"`
	Serve   ServeCmd    `cmd:"" help:"Start the pane broadcast server"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// CorpusGroup contains corpus lifecycle operations.
type CorpusGroup struct {
	Import ImportCmd `cmd:"" help:"Import a token-level XML corpus into the database"`
	Pack   PackCmd   `cmd:"" help:"Pack a token-level XML corpus into a container"`
	Unpack UnpackCmd `cmd:"" help:"Import a corpus container into the database"`
	Verify VerifyCmd `cmd:"" help:"Verify container integrity"`
	List   ListCmd   `cmd:"" help:"List stored corpora"`
	Delete DeleteCmd `cmd:"" help:"Delete a stored corpus"`
}

// ImportCmd imports a token-level XML corpus into the database.
type ImportCmd struct {
	Path string `arg:"" help:"Path to XML corpus file" type:"existingfile"`
}

func (c *ImportCmd) Run() error {
	cp, err := corpus.ReadXMLFile(c.Path)
	if err != nil {
		return err
	}
	return withStore(func(s *store.Store) error {
		if err := s.SaveCorpus(context.Background(), cp); err != nil {
			return err
		}
		fmt.Printf("Imported corpus %s (%d documents)\n", cp.ID, len(cp.Documents))
		return nil
	})
}

// PackCmd packs a token-level XML corpus into a container file.
type PackCmd struct {
	Path string `arg:"" help:"Path to XML corpus file" type:"existingfile"`
	Out  string `required:"" help:"Output container path" type:"path"`
}

func (c *PackCmd) Run() error {
	cp, err := corpus.ReadXMLFile(c.Path)
	if err != nil {
		return err
	}
	if err := corpus.PackFile(cp, c.Out); err != nil {
		return err
	}
	fmt.Printf("Packed %s -> %s\n", cp.ID, c.Out)
	return nil
}

// UnpackCmd imports a corpus container into the database.
type UnpackCmd struct {
	Path string `arg:"" help:"Path to container file" type:"existingfile"`
}

func (c *UnpackCmd) Run() error {
	cp, m, err := corpus.UnpackFile(c.Path)
	if err != nil {
		return err
	}
	return withStore(func(s *store.Store) error {
		if err := s.SaveCorpus(context.Background(), cp); err != nil {
			return err
		}
		fmt.Printf("Imported corpus %s (format v%d, %d documents)\n", m.CorpusID, m.FormatVersion, m.DocumentCount)
		return nil
	})
}

// VerifyCmd verifies container integrity.
type VerifyCmd struct {
	Path string `arg:"" help:"Path to container file" type:"existingfile"`
}

func (c *VerifyCmd) Run() error {
	m, err := corpus.VerifyFile(c.Path)
	if err != nil {
		return err
	}
	fmt.Printf("OK %s\n", c.Path)
	fmt.Printf("  corpus:    %s\n", m.CorpusID)
	fmt.Printf("  documents: %d\n", m.DocumentCount)
	fmt.Printf("  blake3:    %s\n", m.BLAKE3)
	return nil
}

// ListCmd lists stored corpora.
type ListCmd struct{}

func (c *ListCmd) Run() error {
	return withStore(func(s *store.Store) error {
		ids, err := s.ListCorpora(context.Background())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No corpora stored")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	})
}

// DeleteCmd deletes a stored corpus.
type DeleteCmd struct {
	ID string `arg:"" help:"Corpus id to delete"`
}

func (c *DeleteCmd) Run() error {
	return withStore(func(s *store.Store) error {
		if err := s.DeleteCorpus(context.Background(), c.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted corpus %s\n", c.ID)
		return nil
	})
}

// ResolveCmd resolves a note quote against a verse range and prints the
// matched tokens.
type ResolveCmd struct {
	Book       string `arg:"" help:"Book name (e.g. 1John)"`
	Ref        string `arg:"" help:"Verse reference (e.g. 1:2 or 1:2-3)"`
	Quote      string `arg:"" help:"Quote text; use ' & ' between discontiguous segments"`
	Occurrence string `help:"Which occurrence to select" default:"1"`
	Doc        string `help:"Document id to resolve against (default: the book's original-language document)"`
	JSON       bool   `help:"Print the full result as JSON"`
}

func (c *ResolveCmd) Run() error {
	scope, err := ref.Parse(c.Book, c.Ref)
	if err != nil {
		return err
	}
	occurrence, err := ref.ParseOccurrence(c.Occurrence)
	if err != nil {
		return err
	}

	return withStore(func(s *store.Store) error {
		doc, err := c.pickDocument(s)
		if err != nil {
			return err
		}

		res := quote.Resolve(scope, c.Quote, occurrence, token.DocumentProvider{Doc: doc})
		if c.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		if !res.Success {
			fmt.Printf("NO MATCH: %s\n", res.Err)
			return nil
		}
		fmt.Printf("Matched %d token(s) in %s:\n", len(res.TotalTokens), scope)
		for _, m := range res.Matches {
			fmt.Printf("  %s [%d..%d] %q\n", m.VerseRef, m.StartTokenIndex, m.EndTokenIndex, m.Text)
		}
		fmt.Printf("Display: %s\n", quote.RenderSpan(res.TotalTokens, doc.AllTokens()))
		return nil
	})
}

func (c *ResolveCmd) pickDocument(s *store.Store) (*token.Document, error) {
	ctx := context.Background()
	if c.Doc != "" {
		return s.LoadDocument(ctx, c.Doc)
	}

	docs, err := s.DocumentsForBook(ctx, c.Book)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Role == token.RoleOriginal {
			return d, nil
		}
	}
	// No original-language document; fall back to the first one.
	return docs[0], nil
}

// ServeCmd starts the pane broadcast server.
type ServeCmd struct {
	Addr string `help:"Listen address" default:"127.0.0.1:7317"`
}

func (c *ServeCmd) Run() error {
	hub := bus.NewHub()
	defer hub.Close()
	return bus.NewServer(hub).ListenAndServe(c.Addr)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cedarlink %s\n", version)
	return nil
}

// withStore opens the configured database, runs fn, and closes it.
func withStore(fn func(*store.Store) error) error {
	s, err := store.Open(CLI.DB)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func initLogging() {
	level := logging.LevelInfo
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatJSON
	if CLI.LogText {
		format = logging.FormatText
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cedarlink"),
		kong.Description("CedarLink - cross-resource quote alignment and highlighting"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	initLogging()
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
