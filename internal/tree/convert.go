package tree

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/jacoelho/jtx/internal/pathexpr"
)

// DefaultMaxDepth bounds the nesting of converted values.
const DefaultMaxDepth = 1000

// ErrMaxDepthExceeded indicates a value nested deeper than the configured
// limit. Cyclic values always end up here.
var ErrMaxDepthExceeded = errors.New("nesting exceeds maximum depth")

// DepthError locates the first container nested deeper than Limit.
type DepthError struct {
	Path  string
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("%v (%d) at %s", ErrMaxDepthExceeded, e.Limit, e.Path)
}

func (e *DepthError) Unwrap() error {
	return ErrMaxDepthExceeded
}

// Normalize converts a JSON-compatible Go value into the template model:
// objects become *Object, arrays []any and numbers float64. Plain maps have no
// declared order, so their keys are taken in sorted order.
func Normalize(v any) (any, error) {
	return NormalizeDepth(v, DefaultMaxDepth)
}

// NormalizeDepth is Normalize with containers nested at most maxDepth levels
// below the root.
func NormalizeDepth(v any, maxDepth int) (any, error) {
	return converter{ordered: true, maxDepth: maxDepth}.convert(v, 0)
}

// Plain converts a value into the representation the path engine reads:
// objects become map[string]any, arrays []any and numbers float64.
func Plain(v any) (any, error) {
	return converter{maxDepth: DefaultMaxDepth}.convert(v, 0)
}

type converter struct {
	ordered  bool
	maxDepth int
}

func (c converter) enter(depth int) error {
	if c.maxDepth > 0 && depth > c.maxDepth {
		return &DepthError{Path: pathexpr.Root, Limit: c.maxDepth}
	}
	return nil
}

// within prefixes the location of a depth error with the segment it was
// found under.
func within(err error, segment string) error {
	var depthErr *DepthError
	if errors.As(err, &depthErr) {
		depthErr.Path = pathexpr.Root + segment + strings.TrimPrefix(depthErr.Path, pathexpr.Root)
	}
	return err
}

func (c converter) convert(v any, depth int) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %s: %v", ErrUnsupported, t, err)
		}
		return f, nil
	case *Object:
		if t == nil {
			return nil, nil
		}
		return c.convertEntries(t.All(), t.Len(), depth)
	case yaml.MapSlice:
		entries := func(yield func(string, any) bool) {
			for _, item := range t {
				if !yield(fmt.Sprint(item.Key), item.Value) {
					return
				}
			}
		}
		return c.convertEntries(entries, len(t), depth)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		entries := func(yield func(string, any) bool) {
			for _, key := range keys {
				if !yield(key, t[key]) {
					return
				}
			}
		}
		return c.convertEntries(entries, len(t), depth)
	case []any:
		if err := c.enter(depth); err != nil {
			return nil, err
		}
		out := make([]any, len(t))
		for i, item := range t {
			converted, err := c.convert(item, depth+1)
			if err != nil {
				return nil, within(err, pathexpr.IndexSegment(i))
			}
			out[i] = converted
		}
		return out, nil
	case encoding.TextMarshaler:
		// Dates and times decoded from YAML or TOML.
		text, err := t.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("%w: %T: %v", ErrUnsupported, t, err)
		}
		return string(text), nil
	}

	return c.convertReflect(reflect.ValueOf(v), depth)
}

func (c converter) convertEntries(entries func(yield func(string, any) bool), size, depth int) (any, error) {
	if err := c.enter(depth); err != nil {
		return nil, err
	}

	var (
		obj   *Object
		plain map[string]any
		err   error
	)
	if c.ordered {
		obj = NewObject(size)
	} else {
		plain = make(map[string]any, size)
	}

	entries(func(key string, value any) bool {
		var converted any
		converted, err = c.convert(value, depth+1)
		if err != nil {
			err = within(err, pathexpr.AppendKey("", key))
			return false
		}
		if c.ordered {
			obj.Set(key, converted)
		} else {
			plain[key] = converted
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if c.ordered {
		return obj, nil
	}
	return plain, nil
}

func (c converter) convertReflect(rv reflect.Value, depth int) (any, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		// A pointer may point back at itself without any container in between.
		if err := c.enter(depth); err != nil {
			return nil, err
		}
		return c.convert(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, nil
		}
		if err := c.enter(depth); err != nil {
			return nil, err
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			converted, err := c.convert(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, within(err, pathexpr.IndexSegment(i))
			}
			out[i] = converted
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrUnsupported, rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return c.convert(m, depth)
	case reflect.Invalid:
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupported, rv.Interface())
}

// Copy returns a deep copy of a normalized value.
func Copy(v any) any {
	return MapStrings(v, nil)
}

// MapStrings returns a deep copy of v in which every string leaf is replaced
// by fn(leaf). Object keys are not rewritten. A nil fn copies unchanged.
func MapStrings(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		if fn == nil {
			return t
		}
		return fn(t)
	case *Object:
		out := NewObject(t.Len())
		for key, value := range t.All() {
			out.Set(key, MapStrings(value, fn))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[key] = MapStrings(value, fn)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = MapStrings(item, fn)
		}
		return out
	default:
		return v
	}
}
