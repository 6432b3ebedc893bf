package compressor

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

// CompressionTree records the encoding chosen at every node of a compressed
// array. Passing it back as like reuses the recipe on a similar array.
type CompressionTree struct {
	Encoding array.EncodingID
	// Children follow the scheme's child order; a nil child stays canonical.
	Children []*CompressionTree
	// Metadata is the reusable parameter of the node: a bit width, ALP
	// exponents, an ALP-RD dictionary or an FSST symbol table.
	Metadata any
	// NBytes is the size of the subtree when it was built.
	NBytes int
}

// Canonical reports whether the node left its array uncompressed.
func (t *CompressionTree) Canonical() bool {
	return t == nil || t.Encoding == ""
}

// Child returns child i, or nil when absent.
func (t *CompressionTree) Child(i int) *CompressionTree {
	if t == nil || i >= len(t.Children) {
		return nil
	}
	return t.Children[i]
}

// Depth is the number of encoded nodes on the longest path. Chunked, struct,
// list and extension containers do not count.
func (t *CompressionTree) Depth() int {
	if t.Canonical() {
		return 0
	}
	d := 0
	for _, c := range t.Children {
		d = max(d, c.Depth())
	}
	switch t.Encoding {
	case array.ChunkedID, array.StructID, array.ListID, array.ExtensionID:
		return d
	}
	return d + 1
}

// Fingerprint hashes the encodings of the tree, ignoring metadata and sizes.
// Chunks with equal fingerprints share a recipe.
func (t *CompressionTree) Fingerprint() uint64 {
	d := xxhash.New()
	t.hash(d)
	return d.Sum64()
}

func (t *CompressionTree) hash(d *xxhash.Digest) {
	if t.Canonical() {
		_, _ = d.WriteString("canonical;")
		return
	}
	_, _ = d.WriteString(string(t.Encoding))
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(t.Children)))
	_, _ = d.Write(n[:])
	for _, c := range t.Children {
		c.hash(d)
	}
}

func (t *CompressionTree) String() string {
	var sb strings.Builder
	t.render(&sb, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func (t *CompressionTree) render(sb *strings.Builder, indent int) {
	sb.WriteString(strings.Repeat("  ", indent))
	if t.Canonical() {
		sb.WriteString("canonical")
		if t != nil {
			fmt.Fprintf(sb, " (%s)", humanize.IBytes(uint64(max(t.NBytes, 0))))
		}
		sb.WriteString("\n")
		return
	}
	sb.WriteString(string(t.Encoding))
	if t.Metadata != nil {
		fmt.Fprintf(sb, " [%s]", metadataString(t.Metadata))
	}
	fmt.Fprintf(sb, " (%s)\n", humanize.IBytes(uint64(max(t.NBytes, 0))))
	for _, c := range t.Children {
		c.render(sb, indent+1)
	}
}

func canonicalTree(a array.Array) *CompressionTree {
	return &CompressionTree{NBytes: array.NBytes(a)}
}

func metadataString(m any) string {
	switch v := m.(type) {
	case int:
		return fmt.Sprintf("bit_width=%d", v)
	case encoding.ALPRDDictionary:
		return fmt.Sprintf("right_bits=%d left_dict=%d", v.RightBitWidth, len(v.Left))
	case *encoding.SymbolTable:
		return fmt.Sprintf("symbols=%d", v.Len())
	}
	return fmt.Sprint(m)
}
