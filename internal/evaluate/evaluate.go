// Package evaluate classifies template nodes and resolves instructions
// against a source document.
//
// A node is tried against the instruction shapes in a fixed order and the
// first that fits wins:
//
//  1. path string        "$.foo[0].bar"
//  2. fan-out array      [{"$each": "$.items[*]", ...}]
//  3. conditional object {"$exists": "$.x", ...} or {"$if": "$.x", ...}
//  4. bound object       {"$path": "$.x", "$map": "sum"}
//
// Anything else is not an instruction.
package evaluate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jacoelho/jtx/internal/functions"
	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/ratelimit"
	"github.com/jacoelho/jtx/internal/tree"
)

// Instruction property names.
const (
	KeyPath   = "$path"
	KeyMap    = "$map"
	KeyEach   = "$each"
	KeySpread = "$spread"
	KeyExists = "$exists"
	KeyIf     = "$if"
)

// Options configures an Evaluator. Zero fields get defaults.
type Options struct {
	Querier   pathexpr.Querier
	Functions functions.Registry
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
	// MaxDepth bounds the nesting Validate walks.
	MaxDepth int
}

type Evaluator struct {
	querier   pathexpr.Querier
	functions functions.Registry
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	maxDepth  int
}

func New(opts Options) *Evaluator {
	if opts.Querier == nil {
		opts.Querier = pathexpr.New(0)
	}
	if opts.Functions == nil {
		opts.Functions = functions.Builtins()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = tree.DefaultMaxDepth
	}

	return &Evaluator{
		querier:   opts.Querier,
		functions: opts.Functions,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		maxDepth:  opts.MaxDepth,
	}
}

// Evaluate resolves node, found under key at output path. Errors come back as
// *PathError carrying path.
func (e *Evaluator) Evaluate(ctx context.Context, doc, node any, key, path string) (Result, error) {
	res, err := e.evaluate(ctx, doc, node, key, path)
	if err != nil {
		return Result{}, atPath(path, err)
	}
	return res, nil
}

func (e *Evaluator) evaluate(ctx context.Context, doc, node any, key, path string) (Result, error) {
	if pathexpr.IsPathString(node) {
		v, err := e.resolve(doc, node.(string))
		if err != nil {
			return Result{}, err
		}
		return valueResult(v), nil
	}

	if elem, ok := fanOutElement(node); ok {
		fragments, err := e.fanOut(doc, elem)
		if err != nil {
			return Result{}, err
		}
		e.logger.DebugContext(ctx, "fan-out expanded", "path", path, "fragments", len(fragments))
		return nodeResult(fragments), nil
	}

	if obj, ok := conditionalObject(node); ok {
		return e.conditional(ctx, doc, obj, path)
	}

	if obj, ok := boundObject(node); ok {
		return e.bound(ctx, doc, obj, key, path)
	}

	return notAnInstruction, nil
}

// resolve runs a query: multi-valued expressions yield every match, others
// the first one. No match yields nil, for wildcards and filters too, so an
// absent list and an empty match read the same in the output.
func (e *Evaluator) resolve(doc any, expr string) (any, error) {
	parsed, err := e.querier.Parse(expr)
	if err != nil {
		return nil, err
	}

	if !parsed.MultiValued() {
		v, _, err := e.querier.Value(doc, expr)
		return v, err
	}

	values, err := e.querier.Query(doc, expr)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func (e *Evaluator) conditional(ctx context.Context, doc any, obj *tree.Object, path string) (Result, error) {
	for _, guardKey := range []string{KeyExists, KeyIf} {
		guard, ok := obj.Get(guardKey)
		if !ok {
			continue
		}
		expr, ok := guard.(string)
		if !ok || !pathexpr.IsPathString(expr) {
			return Result{}, fmt.Errorf("%w: %s must be a path expression, got %v", ErrInvalidInstruction, guardKey, guard)
		}

		matches, err := e.querier.Query(doc, expr)
		if err != nil {
			return Result{}, err
		}
		if len(matches) == 0 {
			e.logger.DebugContext(ctx, "conditional omitted", "path", path, "guard", expr)
			return omitResult, nil
		}
	}

	return nodeResult(obj.Without(KeyExists, KeyIf)), nil
}

func (e *Evaluator) bound(ctx context.Context, doc any, obj *tree.Object, key, path string) (Result, error) {
	expr, _ := obj.Get(KeyPath)
	value, err := e.resolve(doc, expr.(string))
	if err != nil {
		return Result{}, err
	}

	rawName, ok := obj.Get(KeyMap)
	if !ok {
		return valueResult(value), nil
	}

	fn, err := e.lookup(rawName)
	if err != nil {
		return Result{}, err
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	mapped, err := fn(ctx, functions.Call{
		Value:    value,
		Key:      key,
		Path:     path,
		Node:     obj,
		Document: doc,
	})
	if err != nil {
		return Result{}, err
	}
	return valueResult(mapped), nil
}

func (e *Evaluator) lookup(rawName any) (functions.Func, error) {
	name, ok := rawName.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a function name, got %v", ErrInvalidInstruction, KeyMap, rawName)
	}

	fn, ok := e.functions.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn, nil
}

// fanOutElement matches a single-element array whose element carries a
// "$each" or "$spread" path expression.
func fanOutElement(node any) (*tree.Object, bool) {
	arr, ok := node.([]any)
	if !ok || len(arr) != 1 {
		return nil, false
	}

	elem, ok := arr[0].(*tree.Object)
	if !ok {
		return nil, false
	}

	_, ok = scopeOf(elem)
	return elem, ok
}

func scopeOf(elem *tree.Object) (string, bool) {
	for _, key := range []string{KeyEach, KeySpread} {
		if v, ok := elem.Get(key); ok && pathexpr.IsPathString(v) {
			return v.(string), true
		}
	}
	return "", false
}

func conditionalObject(node any) (*tree.Object, bool) {
	obj, ok := node.(*tree.Object)
	if !ok {
		return nil, false
	}
	for _, key := range []string{KeyExists, KeyIf} {
		if v, ok := obj.Get(key); ok && pathexpr.IsPathString(v) {
			return obj, true
		}
	}
	return nil, false
}

func boundObject(node any) (*tree.Object, bool) {
	obj, ok := node.(*tree.Object)
	if !ok {
		return nil, false
	}
	v, ok := obj.Get(KeyPath)
	return obj, ok && pathexpr.IsPathString(v)
}
