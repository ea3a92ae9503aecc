// Package functions provides the registry of named mapping functions that
// bound template nodes ("$map") apply to the value they select.
//
// Mapping functions should be lenient: an unexpected input shape degrades to a
// sentinel value (nil, NaN, an "Invalid ..." string) rather than an error.
// Errors are reserved for conditions the template author must fix.
package functions

import (
	"context"
	"maps"
	"slices"

	"github.com/jacoelho/jtx/internal/tree"
)

// Call carries the arguments of one mapping-function invocation.
type Call struct {
	// Value is the result of the node's "$path" query.
	Value any
	// Key is the output key being produced.
	Key string
	// Path is the output path being produced, e.g. $.runs[2].total.
	Path string
	// Node is the bound template node.
	Node *tree.Object
	// Document is the source document.
	Document any
}

// Func transforms a selected value. It may block; ctx is cancelled when the
// transformation is abandoned.
type Func func(ctx context.Context, call Call) (any, error)

// Registry maps function names to implementations. Treat as read-only once a
// transformation starts.
type Registry map[string]Func

func (r Registry) Lookup(name string) (Func, bool) {
	fn, ok := r[name]
	return fn, ok && fn != nil
}

// Names returns the registered names, sorted.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// With returns a copy of r with fn registered under name.
func (r Registry) With(name string, fn Func) Registry {
	out := maps.Clone(r)
	if out == nil {
		out = make(Registry, 1)
	}
	out[name] = fn
	return out
}

// Merge returns a copy of r overlaid with other; other wins on conflicts.
func (r Registry) Merge(other Registry) Registry {
	out := make(Registry, len(r)+len(other))
	maps.Copy(out, r)
	maps.Copy(out, other)
	return out
}

// Value adapts a function of the selected value alone.
func Value(fn func(v any) any) Func {
	return func(_ context.Context, call Call) (any, error) {
		return fn(call.Value), nil
	}
}

// Builtins returns a fresh registry holding the default functions.
func Builtins() Registry {
	return Registry{
		"Number": Value(toNumberOrNil),
		"number": Value(toNumberOrNil),
		"String": Value(toStringOrNil),
		"string": Value(toStringOrNil),
		"trim":   Value(trim),
		"upper":  Value(upper),
		"lower":  Value(lower),
		"title":  Value(title),
		"base64": Value(base64Encode),

		"isoDate": Value(isoDate),
		"index":   index,

		"sum": Value(sum),
		"avg": Value(avg),
		"min": Value(minimum),
		"max": Value(maximum),

		"uuid":   Value(uuidV4),
		"uuidv5": Value(uuidV5),
	}
}
