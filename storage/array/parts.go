package array

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// ArrayVisitor receives the physical pieces of an array. Buffers and children
// are presented in a fixed order that the encoding's decoder relies on.
type ArrayVisitor interface {
	VisitBuffer(b *arrow.Buffer) error
	VisitChild(name string, child Array) error
	VisitValidity(v Validity) error
}

// VisitPatches presents patch indices and values as two children.
func VisitPatches(v ArrayVisitor, p *Patches) error {
	if p == nil {
		return nil
	}
	if err := v.VisitChild("patch_indices", p.indices); err != nil {
		return err
	}
	return v.VisitChild("patch_values", p.values)
}

// ArrayParts is the serialized form of an array tree.
type ArrayParts struct {
	Encoding       EncodingID
	Len            int
	Metadata       []byte
	Buffers        []*arrow.Buffer
	Children       []*ArrayParts
	ChildNames     []string
	ValidityKind   ValidityKind
	ValidityBitmap *arrow.Buffer
}

// ToParts decomposes a into parts through its visitor.
func ToParts(a Array) (*ArrayParts, error) {
	meta, err := a.Metadata()
	if err != nil {
		return nil, err
	}
	p := &ArrayParts{Encoding: a.Encoding(), Len: a.Len(), Metadata: meta, ValidityKind: KindNonNullable}
	if err := a.Accept((*partsBuilder)(p)); err != nil {
		return nil, err
	}
	return p, nil
}

type partsBuilder ArrayParts

func (p *partsBuilder) VisitBuffer(b *arrow.Buffer) error {
	p.Buffers = append(p.Buffers, b)
	return nil
}

func (p *partsBuilder) VisitChild(name string, child Array) error {
	cp, err := ToParts(child)
	if err != nil {
		return err
	}
	p.Children = append(p.Children, cp)
	p.ChildNames = append(p.ChildNames, name)
	return nil
}

func (p *partsBuilder) VisitValidity(v Validity) error {
	p.ValidityKind = v.kind
	if v.kind == KindExplicit {
		p.ValidityBitmap = arrow.NewBufferBytes(v.bitmap.Clone().Bytes())
	}
	return nil
}

// DecodeValidity rebuilds the validity recorded in p.
func (p *ArrayParts) DecodeValidity(length int) (Validity, error) {
	switch p.ValidityKind {
	case KindNonNullable:
		return NonNullable(), nil
	case KindAllValid:
		return AllValid(), nil
	case KindAllInvalid:
		return AllInvalid(), nil
	case KindExplicit:
		if p.ValidityBitmap == nil || p.ValidityBitmap.Len()*8 < length {
			return Validity{}, errors.Corrupt(string(p.Encoding), "validity bitmap too short")
		}
		return Explicit(arrow.NewBitmapFromBytes(p.ValidityBitmap.Bytes(), length)), nil
	}
	return Validity{}, errors.Corrupt(string(p.Encoding), fmt.Sprintf("unknown validity kind %d", p.ValidityKind))
}

// NBytes sums metadata, buffer and validity bytes of the tree.
func (p *ArrayParts) NBytes() int {
	n := len(p.Metadata)
	for _, b := range p.Buffers {
		n += b.Len()
	}
	if p.ValidityBitmap != nil {
		n += p.ValidityBitmap.Len()
	}
	for _, c := range p.Children {
		n += c.NBytes()
	}
	return n
}

// Child returns the child recorded under name.
func (p *ArrayParts) Child(name string) (*ArrayParts, bool) {
	for i, n := range p.ChildNames {
		if n == name {
			return p.Children[i], true
		}
	}
	return nil, false
}

// DecodeContext resolves encodings while decoding.
type DecodeContext struct {
	registry *Registry
}

func NewDecodeContext(r *Registry) *DecodeContext {
	return &DecodeContext{registry: r}
}

// DefaultDecodeContext resolves against the default registry.
func DefaultDecodeContext() *DecodeContext {
	return &DecodeContext{registry: defaultRegistry}
}

func (c *DecodeContext) DecodeChild(parts *ArrayParts, dtype arrow.DataType, length int) (Array, error) {
	return Decode(parts, c, dtype, length)
}

// DecodePatches rebuilds patches whose children are stored under the
// patch_indices and patch_values names.
func (c *DecodeContext) DecodePatches(parts *ArrayParts, meta PatchesMetadata, length int, values arrow.DataType) (*Patches, error) {
	if meta.Count == 0 {
		return nil, nil
	}
	ip, ok := parts.Child("patch_indices")
	if !ok {
		return nil, errors.Corrupt(string(parts.Encoding), "missing patch indices")
	}
	vp, ok := parts.Child("patch_values")
	if !ok {
		return nil, errors.Corrupt(string(parts.Encoding), "missing patch values")
	}
	indices, err := c.DecodeChild(ip, arrow.Primitive(meta.IndicesPType, arrow.NonNullable), meta.Count)
	if err != nil {
		return nil, err
	}
	vals, err := c.DecodeChild(vp, values, meta.Count)
	if err != nil {
		return nil, err
	}
	return NewPatches(length, meta.Offset, indices, vals)
}

// Decode rebuilds an array of dtype and length from parts.
func Decode(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
	if ctx == nil {
		ctx = DefaultDecodeContext()
	}
	vt, ok := ctx.registry.Lookup(parts.Encoding)
	if !ok {
		return nil, errors.DecodeFailed(string(parts.Encoding), "unknown encoding", nil)
	}
	if parts.Len != length {
		return nil, errors.DecodeSizeMismatch(string(parts.Encoding), length, parts.Len)
	}
	a, err := vt.Decode(parts, ctx, dtype, length)
	if err != nil {
		return nil, err
	}
	if a.Len() != length {
		return nil, errors.DecodeSizeMismatch(string(parts.Encoding), length, a.Len())
	}
	if !arrow.Equal(a.DataType(), dtype) {
		return nil, errors.Corrupt(string(parts.Encoding),
			fmt.Sprintf("decoded %s, expected %s", a.DataType().Name(), dtype.Name()))
	}
	return a, nil
}

// NBytes returns the serialized size of a: buffers, validity and metadata of
// the whole tree.
func NBytes(a Array) int {
	v := &sizeVisitor{}
	if meta, err := a.Metadata(); err == nil {
		v.n += len(meta)
	}
	if err := a.Accept(v); err != nil {
		return -1
	}
	return v.n
}

type sizeVisitor struct{ n int }

func (s *sizeVisitor) VisitBuffer(b *arrow.Buffer) error {
	s.n += b.Len()
	return nil
}

func (s *sizeVisitor) VisitChild(_ string, child Array) error {
	n := NBytes(child)
	if n < 0 {
		return errors.NotImplemented("nbytes", string(child.Encoding()))
	}
	s.n += n
	return nil
}

func (s *sizeVisitor) VisitValidity(v Validity) error {
	s.n += validityBytes(v)
	return nil
}
