package encoding

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const FSSTID array.EncodingID = "cascade.fsst"

const (
	// MaxSymbols is the number of learned symbols; code 255 escapes a literal.
	MaxSymbols    = 255
	maxSymbolLen  = 8
	fsstEscape    = 0xff
	trainRounds   = 5
	trainMaxBytes = 1 << 16
)

// SymbolTable maps codes 0..254 to symbols of one to eight bytes.
type SymbolTable struct {
	symbols [][]byte
	// byFirst lists codes per first byte, longest symbol first
	byFirst [256][]uint8
}

// NewSymbolTable indexes the given symbols.
func NewSymbolTable(symbols [][]byte) (*SymbolTable, error) {
	if len(symbols) > MaxSymbols {
		return nil, errors.InvalidArg("fsst", fmt.Sprintf("%d symbols exceed %d", len(symbols), MaxSymbols))
	}
	st := &SymbolTable{symbols: symbols}
	for code, s := range symbols {
		if len(s) == 0 || len(s) > maxSymbolLen {
			return nil, errors.InvalidArg("fsst", fmt.Sprintf("symbol %d has length %d", code, len(s)))
		}
		st.byFirst[s[0]] = append(st.byFirst[s[0]], uint8(code))
	}
	for i := range st.byFirst {
		codes := st.byFirst[i]
		sort.SliceStable(codes, func(a, b int) bool {
			return len(symbols[codes[a]]) > len(symbols[codes[b]])
		})
	}
	return st, nil
}

func (st *SymbolTable) Len() int            { return len(st.symbols) }
func (st *SymbolTable) Symbol(code int) []byte { return st.symbols[code] }

// findLongest returns the code of the longest symbol prefixing text.
func (st *SymbolTable) findLongest(text []byte) (uint8, bool) {
	for _, code := range st.byFirst[text[0]] {
		if bytes.HasPrefix(text, st.symbols[code]) {
			return code, true
		}
	}
	return 0, false
}

// Compress appends the codes for input to dst.
func (st *SymbolTable) Compress(dst, input []byte) []byte {
	for pos := 0; pos < len(input); {
		code, ok := st.findLongest(input[pos:])
		if !ok {
			dst = append(dst, fsstEscape, input[pos])
			pos++
			continue
		}
		dst = append(dst, code)
		pos += len(st.symbols[code])
	}
	return dst
}

// Decompress appends the bytes encoded by codes to dst.
func (st *SymbolTable) Decompress(dst, codes []byte) ([]byte, error) {
	for pos := 0; pos < len(codes); pos++ {
		c := codes[pos]
		if c == fsstEscape {
			pos++
			if pos == len(codes) {
				return nil, errors.Corrupt(string(FSSTID), "dangling escape")
			}
			dst = append(dst, codes[pos])
			continue
		}
		if int(c) >= len(st.symbols) {
			return nil, errors.Corrupt(string(FSSTID), fmt.Sprintf("code %d outside table of %d", c, len(st.symbols)))
		}
		dst = append(dst, st.symbols[c]...)
	}
	return dst, nil
}

// MarshalBinary writes the symbol count, one length byte per symbol and the
// symbol bytes, all in code order.
func (st *SymbolTable) MarshalBinary() ([]byte, error) {
	out := make([]byte, 1+len(st.symbols))
	out[0] = byte(len(st.symbols))
	for code, sym := range st.symbols {
		out[1+code] = byte(len(sym))
		out = append(out, sym...)
	}
	return out, nil
}

// UnmarshalSymbolTable reads a table written by MarshalBinary.
func UnmarshalSymbolTable(b []byte) (*SymbolTable, error) {
	if len(b) < 1 || len(b) < 1+int(b[0]) {
		return nil, errors.Corrupt(string(FSSTID), "truncated symbol table")
	}
	n := int(b[0])
	symbols := make([][]byte, n)
	from := 1 + n
	for code := range symbols {
		l := int(b[1+code])
		if from+l > len(b) {
			return nil, errors.Corrupt(string(FSSTID), "truncated symbol table")
		}
		symbols[code] = b[from : from+l]
		from += l
	}
	if from != len(b) {
		return nil, errors.Corrupt(string(FSSTID), fmt.Sprintf("%d trailing bytes after symbol table", len(b)-from))
	}
	return NewSymbolTable(symbols)
}

// TrainSymbolTable learns symbols from samples. Each round encodes the
// samples with the current table, counts symbols and adjacent symbol pairs
// and keeps the candidates with the highest gain.
func TrainSymbolTable(samples [][]byte) *SymbolTable {
	st, _ := NewSymbolTable(nil)
	for round := 0; round < trainRounds; round++ {
		single := make(map[string]int)
		pairs := make(map[string]int)
		for _, text := range samples {
			prev := ""
			for pos := 0; pos < len(text); {
				var sym []byte
				if code, ok := st.findLongest(text[pos:]); ok {
					sym = st.symbols[code]
				} else {
					sym = text[pos : pos+1]
				}
				single[string(sym)]++
				if prev != "" {
					pairs[prev+string(sym)]++
				}
				prev = string(sym)
				pos += len(sym)
			}
		}

		gains := make(map[string]int)
		addCandidate := func(s string, count int) {
			if len(s) > maxSymbolLen {
				s = s[:maxSymbolLen]
			}
			gain := len(s) * count
			// single bytes still cost an escape when left out
			if len(s) == 1 {
				gain *= 2
			}
			gains[s] += gain
		}
		for s, c := range single {
			addCandidate(s, c)
		}
		for s, c := range pairs {
			if c > 1 {
				addCandidate(s, c)
			}
		}

		candidates := make([]string, 0, len(gains))
		for s := range gains {
			candidates = append(candidates, s)
		}
		sort.Slice(candidates, func(i, j int) bool {
			if gains[candidates[i]] != gains[candidates[j]] {
				return gains[candidates[i]] > gains[candidates[j]]
			}
			return candidates[i] < candidates[j]
		})
		if len(candidates) > MaxSymbols {
			candidates = candidates[:MaxSymbols]
		}
		symbols := make([][]byte, len(candidates))
		for i, s := range candidates {
			symbols[i] = []byte(s)
		}
		st, _ = NewSymbolTable(symbols)
	}
	return st
}

// FSSTArray stores each string as symbol codes alongside its uncompressed
// length.
type FSSTArray struct {
	array.Base
	table   *SymbolTable
	codes   array.Array
	lengths array.Array
}

// NewFSST builds an FSST array; codes are binary and carry the validity.
func NewFSST(dt arrow.DataType, table *SymbolTable, codes, lengths array.Array) (*FSSTArray, error) {
	if !arrow.IsVarBin(dt) {
		return nil, errors.TypeMismatch("fsst", "utf8 or binary", dt.Name())
	}
	if codes.DataType().ID() != arrow.BINARY {
		return nil, errors.TypeMismatch("fsst", "binary codes", codes.DataType().Name())
	}
	if codes.DataType().Nullable() != dt.Nullable() {
		return nil, errors.InvalidArg("fsst", "codes nullability must match dtype")
	}
	if err := requireUnsigned("fsst", lengths); err != nil {
		return nil, err
	}
	if codes.Len() != lengths.Len() {
		return nil, errors.LengthMismatch("fsst", "lengths", codes.Len(), lengths.Len())
	}
	return &FSSTArray{
		Base:    array.NewBase(dt, codes.Len()),
		table:   table,
		codes:   codes,
		lengths: lengths,
	}, nil
}

func (f *FSSTArray) Encoding() array.EncodingID        { return FSSTID }
func (f *FSSTArray) SymbolTable() *SymbolTable         { return f.table }
func (f *FSSTArray) Codes() array.Array                { return f.codes }
func (f *FSSTArray) Lengths() array.Array              { return f.lengths }
func (f *FSSTArray) IsValid(i int) bool                { return f.codes.IsValid(i) }
func (f *FSSTArray) Validity() (array.Validity, error) { return f.codes.Validity() }

func (f *FSSTArray) ScalarAt(i int) (arrow.Scalar, error) {
	cs, err := f.codes.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	codes, _ := cs.AsBytes()
	out, err := f.table.Decompress(nil, codes)
	if err != nil {
		return arrow.Scalar{}, err
	}
	if f.DataType().ID() == arrow.UTF8 {
		return arrow.NewScalar(f.DataType(), string(out)), nil
	}
	return arrow.NewScalar(f.DataType(), out), nil
}

func (f *FSSTArray) Slice(start, stop int) (array.Array, error) {
	codes, err := array.Slice(f.codes, start, stop)
	if err != nil {
		return nil, err
	}
	lengths, err := array.Slice(f.lengths, start, stop)
	if err != nil {
		return nil, err
	}
	return NewFSST(f.DataType(), f.table, codes, lengths)
}

func (f *FSSTArray) ToCanonical() (array.Array, error) {
	c, err := array.Canonicalize(f.codes)
	if err != nil {
		return nil, err
	}
	codes, ok := c.(*array.VarBinArray)
	if !ok {
		return nil, errors.TypeMismatch("fsst", "varbin codes", c.DataType().Name())
	}
	lengths, err := unsignedValues(f.lengths, "fsst")
	if err != nil {
		return nil, err
	}
	total := uint64(0)
	for _, l := range lengths {
		total += l
	}
	n := f.Len()
	offsets := make([]int64, n+1)
	data := make([]byte, 0, total)
	for i := 0; i < n; i++ {
		if codes.IsValid(i) {
			if data, err = f.table.Decompress(data, codes.Bytes(i)); err != nil {
				return nil, err
			}
		}
		offsets[i+1] = int64(len(data))
	}
	return array.NewVarBinArray(f.DataType(), arrow.NewBufferFrom(offsets), arrow.NewBufferBytes(data), codes.RawValidity())
}

func (f *FSSTArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("codes", f.codes); err != nil {
		return err
	}
	return v.VisitChild("uncompressed_lengths", f.lengths)
}

func (f *FSSTArray) Metadata() ([]byte, error) {
	table, err := f.table.MarshalBinary()
	if err != nil {
		return nil, err
	}
	lp, _ := arrow.PTypeOf(f.lengths.DataType())
	return new(array.MetaWriter).Bytes(table).Byte(byte(lp)).Finish(), nil
}

func (f *FSSTArray) Validate() error { return nil }

func (f *FSSTArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	codes, err := array.Filter(f.codes, mask)
	if err != nil {
		return nil, err
	}
	lengths, err := array.Filter(f.lengths, mask)
	if err != nil {
		return nil, err
	}
	return NewFSST(f.DataType(), f.table, codes, lengths)
}

func (f *FSSTArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	codes, err := array.Take(f.codes, indices)
	if err != nil {
		return nil, err
	}
	all, err := unsignedValues(f.lengths, "fsst")
	if err != nil {
		return nil, err
	}
	idx := indices.Indices()
	lengths := make([]uint64, len(idx))
	for k, i := range idx {
		if indices.IsValid(k) {
			lengths[k] = all[i]
		}
	}
	dt := f.DataType().WithNullability(arrow.Nullability(codes.DataType().Nullable()))
	return NewFSST(dt, f.table, codes, narrowUnsigned(lengths))
}

func (f *FSSTArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		n, err := array.NullCount(f.codes)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), FSSTID)
}

// Compare evaluates equality against a constant on the compressed codes:
// compression is deterministic, so equal strings have equal codes.
func (f *FSSTArray) Compare(rhs array.Array, op array.Operator) (array.Array, error) {
	rc, ok := rhs.(array.ScalarConstant)
	if !ok || (op != array.Eq && op != array.NotEq) {
		return nil, notImplemented("compare "+op.String(), FSSTID)
	}
	s := rc.ConstantScalar()
	if s.IsNull() {
		return nil, notImplemented("compare null", FSSTID)
	}
	b, _ := s.AsBytes()
	compressed := arrow.NewScalar(arrow.Binary(arrow.NonNullable), f.table.Compress(nil, b))
	c, err := NewConstant(compressed, f.Len())
	if err != nil {
		return nil, err
	}
	return array.Compare(f.codes, c, op)
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        FSSTID,
		Prototype: (*FSSTArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			r := array.NewMetaReader(FSSTID, parts.Metadata)
			raw := r.Bytes()
			lp := arrow.PType(r.Byte())
			if err := r.Err(); err != nil {
				return nil, err
			}
			table, err := UnmarshalSymbolTable(raw)
			if err != nil {
				return nil, err
			}
			cp, err := childAt(parts, "codes")
			if err != nil {
				return nil, err
			}
			lpParts, err := childAt(parts, "uncompressed_lengths")
			if err != nil {
				return nil, err
			}
			codes, err := ctx.DecodeChild(cp, arrow.Binary(arrow.Nullability(dtype.Nullable())), length)
			if err != nil {
				return nil, err
			}
			lengths, err := ctx.DecodeChild(lpParts, arrow.Primitive(lp, arrow.NonNullable), length)
			if err != nil {
				return nil, err
			}
			return NewFSST(dtype, table, codes, lengths)
		},
	})
}

// fsstTrainingSample takes evenly spaced valid values up to a byte budget.
func fsstTrainingSample(v *array.VarBinArray) [][]byte {
	n := v.Len()
	total := int(v.Offsets()[n] - v.Offsets()[0])
	step := 1
	if total > trainMaxBytes {
		step = (total + trainMaxBytes - 1) / trainMaxBytes
	}
	var out [][]byte
	for i := 0; i < n; i += step {
		if v.IsValid(i) {
			out = append(out, v.Bytes(i))
		}
	}
	return out
}

// FSSTCompress compresses a utf8 or binary array, training a table on a
// sample when table is nil.
func FSSTCompress(a array.Array, table *SymbolTable) (*FSSTArray, error) {
	c, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	v, ok := c.(*array.VarBinArray)
	if !ok {
		return nil, errors.UnsupportedType("fsst_compress", a.DataType().Name(), string(FSSTID))
	}
	if table == nil {
		table = TrainSymbolTable(fsstTrainingSample(v))
	}
	n := v.Len()
	offsets := make([]int64, n+1)
	lengths := make([]uint64, n)
	var data []byte
	for i := 0; i < n; i++ {
		if v.IsValid(i) {
			b := v.Bytes(i)
			lengths[i] = uint64(len(b))
			data = table.Compress(data, b)
		}
		offsets[i+1] = int64(len(data))
	}
	codes, err := array.NewVarBinArray(arrow.Binary(arrow.Nullability(v.DataType().Nullable())),
		arrow.NewBufferFrom(offsets), arrow.NewBufferBytes(data), v.RawValidity())
	if err != nil {
		return nil, err
	}
	return NewFSST(v.DataType(), table, codes, narrowUnsigned(lengths))
}
