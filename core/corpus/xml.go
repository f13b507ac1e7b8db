package corpus

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/CedarLink/core/errors"
	"github.com/FocuswithJustin/CedarLink/core/token"
)

// XML corpus layout: token-level markup exported by ingestion tooling.
// This is NOT USFM; the text is already tokenized and aligned.
//
//	<corpus id="UGNT" lang="grc" title="...">
//	  <document id="UGNT-1JN" book="1John" role="original">
//	    <verse chapter="1" verse="2">
//	      <t id="1" kind="word" strongs="G2532" lemma="καί">καὶ</t>
//	      <t id="2" kind="whitespace"> </t>
//	      <t id="3" kind="word" align="100 101">ἡμεῖς</t>
//	    </verse>
//	  </document>
//	</corpus>

// Compiled selectors for the corpus XML layout.
var (
	xpathCorpus   = xpath.MustCompile("//corpus")
	xpathDocument = xpath.MustCompile("document")
	xpathVerse    = xpath.MustCompile("verse")
	xpathToken    = xpath.MustCompile("t")
)

// ReadXML parses a token-level XML corpus export.
func ReadXML(r io.Reader) (*token.Corpus, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, errors.NewParse("XML", "", err.Error())
	}

	root := xmlquery.QuerySelector(doc, xpathCorpus)
	if root == nil {
		return nil, errors.NewParse("XML", "", "missing <corpus> root element")
	}

	c := &token.Corpus{
		ID:       root.SelectAttr("id"),
		Language: root.SelectAttr("lang"),
		Title:    root.SelectAttr("title"),
	}

	for _, docNode := range xmlquery.QuerySelectorAll(root, xpathDocument) {
		d, err := readDocument(docNode)
		if err != nil {
			return nil, err
		}
		c.Documents = append(c.Documents, d)
	}
	return c, nil
}

// ReadXMLFile parses a token-level XML corpus export from a file.
func ReadXMLFile(path string) (*token.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	c, err := ReadXML(f)
	if err != nil {
		if pe, ok := err.(*errors.ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return c, nil
}

func readDocument(node *xmlquery.Node) (*token.Document, error) {
	d := &token.Document{
		ID:       node.SelectAttr("id"),
		Book:     node.SelectAttr("book"),
		Language: node.SelectAttr("lang"),
		Title:    node.SelectAttr("title"),
		Role:     token.Role(node.SelectAttr("role")),
	}
	if d.Book == "" {
		return nil, errors.NewParse("XML", "", "document missing book attribute")
	}
	if d.Role == "" {
		d.Role = token.RoleTranslation
	}

	for _, verseNode := range xmlquery.QuerySelectorAll(node, xpathVerse) {
		v, err := readVerse(verseNode, d.Book)
		if err != nil {
			return nil, err
		}
		d.Verses = append(d.Verses, v)
	}
	return d, nil
}

func readVerse(node *xmlquery.Node, book string) (token.Verse, error) {
	chapter, err := intAttr(node, "chapter")
	if err != nil {
		return token.Verse{}, err
	}
	verse, err := intAttr(node, "verse")
	if err != nil {
		return token.Verse{}, err
	}

	v := token.Verse{Chapter: chapter, Verse: verse}
	for _, tokNode := range xmlquery.QuerySelectorAll(node, xpathToken) {
		t, err := readToken(tokNode)
		if err != nil {
			return token.Verse{}, errors.Wrapf(err, "%s %d:%d", book, chapter, verse)
		}
		v.Tokens = append(v.Tokens, t)
	}
	return v, nil
}

func readToken(node *xmlquery.Node) (token.Token, error) {
	id, err := intAttr(node, "id")
	if err != nil {
		return token.Token{}, err
	}

	kind := token.Kind(node.SelectAttr("kind"))
	if kind == "" {
		kind = token.Word
	}
	if !kind.IsValid() {
		return token.Token{}, errors.NewParse("XML", "", "unknown token kind: "+string(kind))
	}

	t := token.Token{
		ID:      id,
		Text:    node.InnerText(),
		Kind:    kind,
		Strongs: node.SelectAttr("strongs"),
		Lemma:   node.SelectAttr("lemma"),
	}

	if align := strings.TrimSpace(node.SelectAttr("align")); align != "" {
		for _, field := range strings.Fields(align) {
			n, err := strconv.Atoi(field)
			if err != nil {
				return token.Token{}, errors.NewParse("XML", "", "bad align id: "+field)
			}
			t.AlignedTo = append(t.AlignedTo, n)
		}
	}
	return t, nil
}

// intAttr parses a required positive integer attribute.
func intAttr(node *xmlquery.Node, name string) (int, error) {
	raw := node.SelectAttr(name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewParse("XML", "", "bad "+name+" attribute: "+raw)
	}
	return n, nil
}
