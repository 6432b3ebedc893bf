// Package compressor chooses encodings for arrays. It trials candidate
// schemes on a sample, keeps the smallest result and recurses into the
// winner's children up to a bounded cascade depth.
package compressor

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/codec"
	"github.com/wzqhbustb/cascade/storage/encoding"
	"github.com/wzqhbustb/cascade/storage/errors"
)

// Compressor is safe for concurrent use; it holds no state besides its
// metrics.
type Compressor struct {
	cfg        Config
	logger     log.Logger
	metrics    *metrics
	schemes    []Scheme
	byID       map[array.EncodingID]Scheme
	blockCodec codec.Codec
}

// New returns a compressor with the default configuration and schemes,
// modified by opts.
func New(opts ...Option) (*Compressor, error) {
	o := &options{cfg: *DefaultConfig(), logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.schemes == nil {
		o.schemes = DefaultSchemes()
	}
	blockCodec, err := codec.ByName(o.cfg.BlockCodec)
	if err != nil {
		return nil, err
	}
	c := &Compressor{
		cfg:        o.cfg,
		logger:     o.logger,
		metrics:    newMetrics(o.registerer),
		schemes:    o.schemes,
		byID:       make(map[array.EncodingID]Scheme, len(o.schemes)),
		blockCodec: blockCodec,
	}
	for _, s := range o.schemes {
		c.byID[s.ID()] = s
	}
	return c, nil
}

// Config returns the configuration in use.
func (c *Compressor) Config() Config { return c.cfg }

// Compress encodes a, reusing the recipe of like when given. The result has
// the length, dtype and values of a.
func (c *Compressor) Compress(a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	ctx := &Context{c: c, depth: c.cfg.MaxCascade}
	out, tree, err := ctx.compress(a, like)
	if err != nil {
		return nil, nil, err
	}
	c.observe(tree)
	if before, after := array.NBytes(a), tree.NBytes; before > 0 && after > 0 {
		c.metrics.ratio.Observe(float64(before) / float64(after))
	}
	return out, tree, nil
}

// observe counts every encoding of the final tree.
func (c *Compressor) observe(t *CompressionTree) {
	if t.Canonical() {
		return
	}
	switch t.Encoding {
	case array.ChunkedID, array.StructID, array.ListID, array.ExtensionID:
	default:
		c.metrics.selected.WithLabelValues(string(t.Encoding)).Inc()
	}
	for _, child := range t.Children {
		c.observe(child)
	}
}

// Context is the position of one compression call in the tree: the depth
// left, the cost spent on the path and the encodings above it.
type Context struct {
	c         *Compressor
	depth     int
	cost      int
	ancestors []array.EncodingID
	trial     bool
}

// Config returns the configuration of the compressor.
func (ctx *Context) Config() *Config { return &ctx.c.cfg }

// Depth is the number of encodings that may still nest at this node.
func (ctx *Context) Depth() int { return ctx.depth }

func (ctx *Context) enter(s Scheme) *Context {
	ancestors := make([]array.EncodingID, len(ctx.ancestors), len(ctx.ancestors)+1)
	copy(ancestors, ctx.ancestors)
	return &Context{
		c:         ctx.c,
		depth:     ctx.depth - 1,
		cost:      ctx.cost + s.Cost(),
		ancestors: append(ancestors, s.ID()),
		trial:     ctx.trial,
	}
}

func (ctx *Context) asTrial() *Context {
	t := *ctx
	t.trial = true
	return &t
}

func (ctx *Context) hasAncestor(id array.EncodingID) bool {
	for _, a := range ctx.ancestors {
		if a == id {
			return true
		}
	}
	return false
}

// CompressChild compresses a child array of the node being built.
func (ctx *Context) CompressChild(a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	return ctx.compress(a, like)
}

func (ctx *Context) compress(a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	if a.Len() == 0 {
		canon, err := array.Canonicalize(a)
		if err != nil {
			return nil, nil, err
		}
		return canon, canonicalTree(canon), nil
	}

	// 结构性输入不解码
	switch t := a.(type) {
	case *array.ChunkedArray:
		return ctx.compressChunks(t, like)
	case *encoding.ConstantArray:
		return t, &CompressionTree{Encoding: encoding.ConstantID, NBytes: array.NBytes(t)}, nil
	case *encoding.SparseArray:
		if ctx.depth > 0 {
			return sparseScheme{}.compressSparse(ctx.enter(sparseScheme{}), t, like)
		}
	}

	canon, err := array.Canonicalize(a)
	if err != nil {
		return nil, nil, err
	}
	if ctx.depth <= 0 {
		return canon, canonicalTree(canon), nil
	}

	if out, tree, ok, err := ctx.constant(canon); err != nil || ok {
		return out, tree, err
	}

	switch t := canon.(type) {
	case *array.StructArray:
		return ctx.compressStruct(t, like)
	case *array.ListArray:
		return ctx.compressList(t, like)
	case *array.ExtensionArray:
		if !arrow.IsTimestamp(t.DataType()) {
			return ctx.compressExtension(t, like)
		}
	}

	if like != nil {
		if out, tree, ok := ctx.reuse(canon, like); ok {
			return out, tree, nil
		}
	}
	return ctx.search(canon)
}

// constant emits a Constant array when every element of canon is equal,
// nulls included.
func (ctx *Context) constant(canon array.Array) (array.Array, *CompressionTree, bool, error) {
	nulls, err := array.NullCount(canon)
	if err != nil {
		return nil, nil, false, err
	}
	var s arrow.Scalar
	switch {
	case nulls == canon.Len():
		s = arrow.NullScalar(canon.DataType())
	case nulls > 0:
		return nil, nil, false, nil
	default:
		ok, err := array.IsConstant(canon, array.IsConstantOpts{Canonicalize: true})
		if err != nil || !ok {
			return nil, nil, false, err
		}
		if s, err = array.ScalarAt(canon, 0); err != nil {
			return nil, nil, false, err
		}
	}
	out, err := encoding.NewConstant(s, canon.Len())
	if err != nil {
		return nil, nil, false, err
	}
	return out, &CompressionTree{Encoding: encoding.ConstantID, NBytes: array.NBytes(out)}, true, nil
}

// reuse applies the recipe of like. A canonical recipe node carries nothing
// to apply, so it and a recipe that no longer fits both fall over to a fresh
// search.
func (ctx *Context) reuse(canon array.Array, like *CompressionTree) (array.Array, *CompressionTree, bool) {
	if like.Canonical() {
		return nil, nil, false
	}
	s, ok := ctx.c.byID[like.Encoding]
	if !ok || ctx.hasAncestor(s.ID()) {
		return nil, nil, false
	}
	out, tree, err := s.Compress(ctx.enter(s), canon, like)
	if err != nil {
		ctx.c.metrics.trials.WithLabelValues(string(s.ID()), "like_miss").Inc()
		level.Debug(ctx.c.logger).Log("msg", "compression recipe does not fit", "encoding", s.ID(), "err", err)
		return nil, nil, false
	}
	ctx.c.metrics.trials.WithLabelValues(string(s.ID()), "like_hit").Inc()
	return out, finish(tree, out), true
}

type trialResult struct {
	scheme Scheme
	order  int
	out    array.Array
	tree   *CompressionTree
	size   int
}

// search trials every applicable scheme on a sample of canon and applies the
// best one to the whole array.
func (ctx *Context) search(canon array.Array) (array.Array, *CompressionTree, error) {
	sample, err := ctx.c.sample(canon)
	if err != nil {
		return nil, nil, err
	}
	sampled := sample.Len() != canon.Len()
	st, err := ComputeStats(sample)
	if err != nil {
		return nil, nil, err
	}
	baseline := array.NBytes(st.Array)

	var results []trialResult
	for order, s := range ctx.c.schemes {
		if ctx.hasAncestor(s.ID()) || ctx.cost+s.Cost() > ctx.c.cfg.MaxCost || !s.CanCompress(ctx, st) {
			continue
		}
		out, tree, err := s.Compress(ctx.asTrial().enter(s), st.Array, nil)
		if err != nil {
			outcome := "failed"
			if encoding.IsRejected(err) {
				outcome = "rejected"
			}
			ctx.c.metrics.trials.WithLabelValues(string(s.ID()), outcome).Inc()
			level.Debug(ctx.c.logger).Log("msg", "compression candidate rejected", "encoding", s.ID(), "depth", ctx.depth, "outcome", outcome, "err", err)
			continue
		}
		size := array.NBytes(out)
		ctx.c.metrics.trials.WithLabelValues(string(s.ID()), "ok").Inc()
		level.Debug(ctx.c.logger).Log(
			"msg", "compression trial",
			"encoding", s.ID(),
			"depth", ctx.depth,
			"sample", humanize.IBytes(uint64(baseline)),
			"estimated", humanize.IBytes(uint64(max(size, 0))),
			"ratio", ratio(baseline, size),
		)
		if size < 0 || size >= baseline {
			continue
		}
		results = append(results, trialResult{scheme: s, order: order, out: out, tree: finish(tree, out), size: size})
	}

	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i], results[j]
		if ri.size != rj.size {
			return ri.size < rj.size
		}
		if ri.scheme.Cost() != rj.scheme.Cost() {
			return ri.scheme.Cost() < rj.scheme.Cost()
		}
		return ri.order < rj.order
	})

	for _, r := range results {
		out, tree := r.out, r.tree
		if sampled {
			var err error
			out, tree, err = r.scheme.Compress(ctx.enter(r.scheme), canon, r.tree)
			if err != nil {
				level.Debug(ctx.c.logger).Log("msg", "sampled winner failed on full array", "encoding", r.scheme.ID(), "err", err)
				continue
			}
			tree = finish(tree, out)
		}
		if !ctx.trial {
			level.Debug(ctx.c.logger).Log(
				"msg", "compression selected",
				"encoding", r.scheme.ID(),
				"depth", ctx.depth,
				"len", canon.Len(),
				"sampled", sampled,
				"size", humanize.IBytes(uint64(max(tree.NBytes, 0))),
				"ratio", ratio(array.NBytes(canon), tree.NBytes),
			)
		}
		return out, tree, nil
	}
	return canon, canonicalTree(canon), nil
}

func finish(tree *CompressionTree, out array.Array) *CompressionTree {
	tree.NBytes = array.NBytes(out)
	return tree
}

func ratio(before, after int) string {
	if after <= 0 {
		return "inf"
	}
	return fmt.Sprintf("%.2f", float64(before)/float64(after))
}

// ====================
// Structural inputs
// ====================

func (ctx *Context) compressChunks(ch *array.ChunkedArray, like *CompressionTree) (array.Array, *CompressionTree, error) {
	chunks := make([]array.Array, ch.NumChunks())
	trees := make([]*CompressionTree, ch.NumChunks())
	var prev *CompressionTree
	for k, chunk := range ch.Chunks() {
		chunkLike := like.Child(k)
		if chunkLike == nil {
			chunkLike = prev
		}
		out, tree, err := ctx.compress(chunk, chunkLike)
		if err != nil {
			return nil, nil, err
		}
		chunks[k], trees[k] = out, tree
		if !tree.Canonical() && tree.Encoding != encoding.ConstantID {
			prev = tree
		}
	}
	out, err := array.NewChunkedArray(ch.DataType(), chunks)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: array.ChunkedID, Children: trees, NBytes: array.NBytes(out)}, nil
}

func (ctx *Context) compressStruct(s *array.StructArray, like *CompressionTree) (array.Array, *CompressionTree, error) {
	fields := make([]array.Array, len(s.Fields()))
	trees := make([]*CompressionTree, len(fields))
	for i, f := range s.Fields() {
		out, tree, err := ctx.compress(f, like.Child(i))
		if err != nil {
			return nil, nil, err
		}
		fields[i], trees[i] = out, tree
	}
	validity, err := s.Validity()
	if err != nil {
		return nil, nil, err
	}
	out, err := array.NewStructArray(s.DataType().(*arrow.StructType), s.Len(), fields, validity)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: array.StructID, Children: trees, NBytes: array.NBytes(out)}, nil
}

func (ctx *Context) compressList(l *array.ListArray, like *CompressionTree) (array.Array, *CompressionTree, error) {
	elements, tree, err := ctx.compress(l.Elements(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	validity, err := l.Validity()
	if err != nil {
		return nil, nil, err
	}
	out, err := array.NewListArray(l.DataType().(*arrow.ListType), arrow.NewBufferFrom(l.Offsets()), elements, validity)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: array.ListID, Children: []*CompressionTree{tree}, NBytes: array.NBytes(out)}, nil
}

func (ctx *Context) compressExtension(e *array.ExtensionArray, like *CompressionTree) (array.Array, *CompressionTree, error) {
	storage, tree, err := ctx.compress(e.Storage(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	dt, ok := e.DataType().(*arrow.ExtensionType)
	if !ok {
		return nil, nil, errors.TypeMismatch("compress", "extension", e.DataType().Name())
	}
	out, err := array.NewExtensionArray(dt, storage)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: array.ExtensionID, Children: []*CompressionTree{tree}, NBytes: array.NBytes(out)}, nil
}
