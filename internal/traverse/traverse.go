// Package traverse walks a template, resolving every key through the node
// evaluator and assembling an output of the same shape.
//
// An omitted array element is dropped rather than left as a null hole, so the
// elements after it move up one index. Paths, including the one handed to a
// "$map" function such as index, name the template position and not the
// output position.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jacoelho/jtx/internal/evaluate"
	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/tree"
)

// DefaultMaxDepth bounds template nesting, including nesting produced by
// fan-out and conditional replacement.
const DefaultMaxDepth = tree.DefaultMaxDepth

// ErrMaxDepthExceeded indicates a template nested deeper than the configured
// limit.
var ErrMaxDepthExceeded = tree.ErrMaxDepthExceeded

// NodeEvaluator resolves a single template node.
type NodeEvaluator interface {
	Evaluate(ctx context.Context, doc, node any, key, path string) (evaluate.Result, error)
}

type Options struct {
	Evaluator NodeEvaluator
	Strategy  Strategy
	MaxDepth  int
}

type Engine struct {
	evaluator NodeEvaluator
	strategy  Strategy
	maxDepth  int
}

func New(opts Options) *Engine {
	if opts.Strategy == nil {
		opts.Strategy = Immediate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	return &Engine{
		evaluator: opts.Evaluator,
		strategy:  opts.Strategy,
		maxDepth:  opts.MaxDepth,
	}
}

// slot is what one key's computation produces.
type slot struct {
	value any
	omit  bool
}

// Transform resolves the template root as a node of its own, so a root
// instruction (a fan-out array, a path string) works like any other key. An
// omitted root yields nil.
func (e *Engine) Transform(ctx context.Context, template, doc any) (any, error) {
	s, err := e.resolve(ctx, doc, template, "", pathexpr.Root, 0)
	if err != nil {
		return nil, attribute(pathexpr.Root, err)
	}
	return s.value, nil
}

// Traverse resolves every key of template at path; scalars come back as is.
func (e *Engine) Traverse(ctx context.Context, template, doc any, path string) (any, error) {
	return e.traverse(ctx, template, doc, path, 0)
}

func (e *Engine) traverse(ctx context.Context, template, doc any, path string, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, &evaluate.PathError{Path: path, Err: fmt.Errorf("%w (%d)", ErrMaxDepthExceeded, e.maxDepth)}
	}

	switch t := template.(type) {
	case *tree.Object:
		out := tree.NewObject(t.Len())
		for key, node := range t.All() {
			s, err := e.fold(ctx, doc, node, key, pathexpr.AppendKey(path, key), depth+1)
			if err != nil {
				return nil, err
			}
			if !s.omit {
				out.Set(key, s.value)
			}
		}
		return out, nil

	case []any:
		out := make([]any, 0, len(t))
		for i, node := range t {
			s, err := e.fold(ctx, doc, node, strconv.Itoa(i), pathexpr.AppendIndex(path, i), depth+1)
			if err != nil {
				return nil, err
			}
			if !s.omit {
				out = append(out, s.value)
			}
		}
		return out, nil
	}

	return template, nil
}

// fold starts one key through the strategy and waits for it to finish before
// returning, which keeps sibling keys strictly ordered.
func (e *Engine) fold(ctx context.Context, doc, node any, key, path string, depth int) (slot, error) {
	pending := e.strategy.Start(ctx, func(ctx context.Context) (any, error) {
		return e.resolve(ctx, doc, node, key, path, depth)
	})

	v, err := pending.Await(ctx)
	if err != nil {
		return slot{}, attribute(path, err)
	}
	return v.(slot), nil
}

func attribute(path string, err error) error {
	var pathErr *evaluate.PathError
	if errors.As(err, &pathErr) {
		return err
	}
	return &evaluate.PathError{Path: path, Err: err}
}

func (e *Engine) resolve(ctx context.Context, doc, node any, key, path string, depth int) (slot, error) {
	res, err := e.evaluator.Evaluate(ctx, doc, node, key, path)
	if err != nil {
		return slot{}, err
	}

	switch res.Kind {
	case evaluate.KindValue:
		return slot{value: res.Value}, nil
	case evaluate.KindOmit:
		return slot{omit: true}, nil
	case evaluate.KindNode:
		v, err := e.traverse(ctx, res.Value, doc, path, depth)
		return slot{value: v}, err
	}

	switch node.(type) {
	case *tree.Object, []any:
		v, err := e.traverse(ctx, node, doc, path, depth)
		return slot{value: v}, err
	}
	return slot{value: node}, nil
}
