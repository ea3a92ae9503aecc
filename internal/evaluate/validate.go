package evaluate

import (
	"fmt"

	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/tree"
)

// Validate checks a normalized template before any document is seen: every
// path string must parse, every fan-out scope must be expandable and every
// "$map" of a bound object must be registered. Conditional branches are
// checked even if they would be omitted.
func (e *Evaluator) Validate(template any) error {
	return e.validate(template, pathexpr.Root, 0)
}

func (e *Evaluator) validate(node any, path string, depth int) error {
	switch t := node.(type) {
	case string:
		if !pathexpr.IsPathString(t) {
			return nil
		}
		if _, err := e.querier.Parse(t); err != nil {
			return atPath(path, err)
		}

	case *tree.Object:
		if depth > e.maxDepth {
			return atPath(path, fmt.Errorf("%w (%d)", tree.ErrMaxDepthExceeded, e.maxDepth))
		}
		if _, ok := conditionalObject(t); !ok {
			if _, ok := boundObject(t); ok {
				if name, ok := t.Get(KeyMap); ok {
					if _, err := e.lookup(name); err != nil {
						return atPath(path, err)
					}
				}
			}
		}
		for key, value := range t.All() {
			if err := e.validate(value, pathexpr.AppendKey(path, key), depth+1); err != nil {
				return err
			}
		}

	case []any:
		if depth > e.maxDepth {
			return atPath(path, fmt.Errorf("%w (%d)", tree.ErrMaxDepthExceeded, e.maxDepth))
		}
		if elem, ok := fanOutElement(t); ok {
			if err := e.validateScope(elem); err != nil {
				return atPath(path, err)
			}
			// The scope never reaches the output; only it may carry a
			// position suffix.
			return e.validate(elem.Without(KeyEach, KeySpread), pathexpr.AppendIndex(path, 0), depth+1)
		}
		for i, item := range t {
			if err := e.validate(item, pathexpr.AppendIndex(path, i), depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Evaluator) validateScope(elem *tree.Object) error {
	raw, _ := scopeOf(elem)
	sc := parseScope(raw)
	if len(sc.positions) > 1 {
		return fmt.Errorf("%w: scope %q names positions %v", ErrMultiDimensionalFanOut, raw, sc.positions)
	}

	expr, err := e.querier.Parse(sc.expr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedScope, err)
	}
	if _, err := dimension(expr, sc); err != nil {
		return fmt.Errorf("%w: scope %q: %v", ErrMalformedScope, raw, err)
	}
	return nil
}
