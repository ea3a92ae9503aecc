// Package jtx transforms JSON documents by applying a JSON template.
//
// A template mirrors the shape of the output. Strings starting with "$." or
// "$[" are JSONPath queries against the source document; every other value is
// copied as is. A few object and array shapes are instructions:
//
//	{"$path": "$.runs[*].time", "$map": "sum"}    query, then apply a function
//	{"$exists": "$.flag", "name": "$.name"}       keep the object only on a match
//	{"$if": "$.flag", "name": "$.name"}           same as $exists
//	[{"$each": "$.items[*]", "id": "$.items[*].id"}]
//	                                              one element per matched item
//
// Inside a fan-out element, paths under the scope are rewritten to address
// the current item, so "$.items[*].id" reads "$.items[0].id", "$.items[1].id"
// and so on. Output keys keep template order.
package jtx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacoelho/jtx/internal/evaluate"
	"github.com/jacoelho/jtx/internal/functions"
	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/ratelimit"
	"github.com/jacoelho/jtx/internal/traverse"
	"github.com/jacoelho/jtx/internal/tree"
)

type (
	// Func is a mapping function referenced by "$map".
	Func = functions.Func
	// Call carries the arguments of a mapping-function invocation.
	Call = functions.Call
	// Registry maps "$map" names to functions.
	Registry = functions.Registry
	// Object is an ordered JSON object, used for templates and output.
	Object = tree.Object
)

// Builtins returns a fresh registry with the built-in mapping functions.
func Builtins() Registry {
	return functions.Builtins()
}

// Transformer applies a compiled template. It is safe for concurrent use as
// long as the registered functions are.
type Transformer struct {
	template   any
	immediate  *traverse.Engine
	sequential *traverse.Engine
	logger     *slog.Logger
}

// Compile normalizes and validates template. Path expressions, fan-out scopes,
// "$map" names and nesting depth are checked up front; errors carry the
// template path. A cyclic template fails with ErrMaxDepthExceeded.
func Compile(template any, opts ...Option) (*Transformer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	normalized, err := tree.NormalizeDepth(template, o.maxDepth)
	if err != nil {
		var depthErr *tree.DepthError
		if errors.As(err, &depthErr) {
			return nil, &PathError{Path: depthErr.Path, Err: fmt.Errorf("%w (%d)", ErrMaxDepthExceeded, depthErr.Limit)}
		}
		return nil, fmt.Errorf("template: %w", err)
	}

	ev := evaluate.New(evaluate.Options{
		Querier:   pathexpr.New(o.cacheSize),
		Functions: o.functions,
		Limiter:   ratelimit.New(o.rateLimit),
		Logger:    o.logger,
		MaxDepth:  o.maxDepth,
	})
	if err := ev.Validate(normalized); err != nil {
		return nil, err
	}

	return &Transformer{
		template:   normalized,
		immediate:  traverse.New(traverse.Options{Evaluator: ev, Strategy: traverse.Immediate, MaxDepth: o.maxDepth}),
		sequential: traverse.New(traverse.Options{Evaluator: ev, Strategy: traverse.Sequential, MaxDepth: o.maxDepth}),
		logger:     o.logger,
	}, nil
}

// Transform applies the template to doc. Objects in the result are *Object,
// which marshal to JSON and YAML in template order.
func (t *Transformer) Transform(ctx context.Context, doc any) (any, error) {
	return t.run(ctx, t.immediate, doc)
}

// TransformDeferred applies the template in the background, computing one key
// at a time so blocking mapping functions never overlap.
func (t *Transformer) TransformDeferred(ctx context.Context, doc any) *Future {
	return &Future{
		future: traverse.Go(ctx, func(ctx context.Context) (any, error) {
			return t.run(ctx, t.sequential, doc)
		}),
	}
}

func (t *Transformer) run(ctx context.Context, engine *traverse.Engine, doc any) (any, error) {
	plain, err := tree.Plain(doc)
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}

	start := time.Now()
	out, err := engine.Transform(ctx, t.template, plain)
	if err != nil {
		return nil, err
	}

	t.logger.DebugContext(ctx, "transform complete", "elapsed", time.Since(start))
	return out, nil
}

// Future is the result of TransformDeferred.
type Future struct {
	future *traverse.Future
}

// Await blocks until the transformation finishes or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	return f.future.Await(ctx)
}

// Done is closed when the transformation finishes.
func (f *Future) Done() <-chan struct{} {
	return f.future.Done()
}

// Transform compiles template with the built-in functions and applies it to
// doc.
func Transform(template, doc any) (any, error) {
	t, err := Compile(template)
	if err != nil {
		return nil, err
	}
	return t.Transform(context.Background(), doc)
}
