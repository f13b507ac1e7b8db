// Package corpus reads and writes pre-tokenized corpus snapshots.
//
// The container format is a small uncompressed JSON manifest (corpus
// identity plus a BLAKE3 digest of the body) followed by the xz-compressed
// corpus JSON. The digest is computed over the uncompressed body, so Verify
// catches both corruption and a manifest/body mismatch.
package corpus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarLink/core/errors"
	"github.com/FocuswithJustin/CedarLink/core/token"
)

// FormatVersion is the current container format version.
const FormatVersion = 1

// magic identifies a corpus container file.
var magic = []byte("CLCORP1\n")

// Manifest describes a packed corpus without decompressing it.
type Manifest struct {
	FormatVersion    int    `json:"format_version"`
	CorpusID         string `json:"corpus_id"`
	Language         string `json:"language,omitempty"`
	Title            string `json:"title,omitempty"`
	DocumentCount    int    `json:"document_count"`
	BLAKE3           string `json:"blake3"`
	UncompressedSize int64  `json:"uncompressed_size"`
	CreatedAt        string `json:"created_at"`
}

// Pack writes a corpus container to w.
func Pack(c *token.Corpus, w io.Writer) error {
	if c == nil {
		return errors.NewValidation("corpus", "nil corpus")
	}

	body, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal corpus")
	}

	digest := blake3.Sum256(body)
	manifest := Manifest{
		FormatVersion:    FormatVersion,
		CorpusID:         c.ID,
		Language:         c.Language,
		Title:            c.Title,
		DocumentCount:    len(c.Documents),
		BLAKE3:           hex.EncodeToString(digest[:]),
		UncompressedSize: int64(len(body)),
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	manifestJSON, err := json.Marshal(&manifest)
	if err != nil {
		return errors.Wrap(err, "marshal manifest")
	}

	if _, err := w.Write(magic); err != nil {
		return errors.NewIO("write", "", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(manifestJSON))); err != nil {
		return errors.NewIO("write", "", err)
	}
	if _, err := w.Write(manifestJSON); err != nil {
		return errors.NewIO("write", "", err)
	}

	zw, err := xz.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, "create xz writer")
	}
	if _, err := zw.Write(body); err != nil {
		return errors.NewIO("compress", "", err)
	}
	return zw.Close()
}

// PackFile writes a corpus container to path.
func PackFile(c *token.Corpus, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	defer f.Close()
	if err := Pack(c, f); err != nil {
		return err
	}
	return f.Close()
}

// ReadManifest reads just the container manifest, leaving r positioned at the
// compressed body.
func ReadManifest(r io.Reader) (*Manifest, error) {
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, errors.NewParse("container", "", "truncated header")
	}
	if !bytes.Equal(head, magic) {
		return nil, errors.NewParse("container", "", "bad magic")
	}

	var manifestLen uint32
	if err := binary.Read(r, binary.BigEndian, &manifestLen); err != nil {
		return nil, errors.NewParse("container", "", "truncated manifest length")
	}
	manifestJSON := make([]byte, manifestLen)
	if _, err := io.ReadFull(r, manifestJSON); err != nil {
		return nil, errors.NewParse("container", "", "truncated manifest")
	}

	var m Manifest
	if err := json.Unmarshal(manifestJSON, &m); err != nil {
		return nil, errors.NewParse("container", "", err.Error())
	}
	if m.FormatVersion != FormatVersion {
		return nil, errors.NewUnsupported("container version", fmt.Sprintf("%d", m.FormatVersion))
	}
	return &m, nil
}

// Unpack reads a corpus container, verifying the body digest against the
// manifest before decoding.
func Unpack(r io.Reader) (*token.Corpus, *Manifest, error) {
	m, err := ReadManifest(r)
	if err != nil {
		return nil, nil, err
	}

	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create xz reader")
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, nil, errors.NewIO("decompress", "", err)
	}

	digest := blake3.Sum256(body)
	if hex.EncodeToString(digest[:]) != m.BLAKE3 {
		return nil, nil, errors.NewParse("container", "", "BLAKE3 digest mismatch")
	}

	var c token.Corpus
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, nil, errors.NewParse("container", "", err.Error())
	}
	return &c, m, nil
}

// UnpackFile reads a corpus container from path.
func UnpackFile(path string) (*token.Corpus, *Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return Unpack(f)
}

// Verify checks a container's integrity without returning the corpus.
func Verify(r io.Reader) (*Manifest, error) {
	_, m, err := Unpack(r)
	return m, err
}

// VerifyFile checks a container file's integrity.
func VerifyFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return Verify(f)
}
