package evaluate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/tree"
)

// scope is a fan-out scope split from its optional ",N" position suffix.
type scope struct {
	expr      string
	positions []int
}

// parseScope splits "$.a[*].b[*],1" into the expression and the 1-based
// positions of the multi-valued segments to expand.
func parseScope(raw string) scope {
	s := scope{expr: raw}
	for {
		i := strings.LastIndexByte(s.expr, ',')
		if i < 0 {
			return s
		}
		n, err := strconv.Atoi(strings.TrimSpace(s.expr[i+1:]))
		if err != nil || n < 0 {
			return s
		}
		s.positions = slices.Insert(s.positions, 0, n)
		s.expr = strings.TrimSpace(s.expr[:i])
	}
}

func (s scope) suffix() string {
	var b strings.Builder
	for _, p := range s.positions {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// fanOut expands elem into one fragment per location matched by its scope.
//
// One multi-valued segment of the scope is the expanded dimension: the last
// one, or the one named by a ",N" suffix. A scope without multi-valued
// segments yields one fragment if it matches and none otherwise. Each location contributes the scope
// prefix through that dimension with the dimension made concrete; earlier
// multi-valued segments stay as written. Every path string inside the
// fragment that starts with the scope prefix is rewritten to start with the
// concrete location instead.
func (e *Evaluator) fanOut(doc any, elem *tree.Object) ([]any, error) {
	raw, _ := scopeOf(elem)
	fragment := elem.Without(KeyEach, KeySpread)

	sc := parseScope(raw)
	if len(sc.positions) > 1 {
		return nil, fmt.Errorf("%w: scope %q names positions %v", ErrMultiDimensionalFanOut, raw, sc.positions)
	}

	expr, err := e.querier.Parse(sc.expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedScope, err)
	}

	dim, err := dimension(expr, sc)
	if err != nil {
		return nil, fmt.Errorf("%w: scope %q: %v", ErrMalformedScope, raw, err)
	}
	prefix := expr.Segments[:dim+1]

	locations, err := e.querier.Paths(doc, sc.expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedScope, err)
	}

	seen := make(map[string]struct{}, len(locations))
	fragments := make([]any, 0, len(locations))
	for _, loc := range locations {
		if len(loc.Segments) <= dim {
			return nil, fmt.Errorf("%w: scope %q matched %s above the expanded dimension", ErrMalformedScope, raw, loc)
		}

		concrete := make([]pathexpr.Segment, dim+1)
		for i := range concrete {
			if i < dim && prefix[i].Multi {
				concrete[i] = prefix[i]
				continue
			}
			concrete[i] = loc.Segments[i]
		}

		key := pathexpr.Stringify(concrete)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		fragments = append(fragments, e.rewrite(fragment, prefix, concrete))
	}

	return fragments, nil
}

// dimension returns the index of the segment to expand; for a concrete scope
// that is its last segment.
func dimension(expr pathexpr.Expr, sc scope) (int, error) {
	var dims []int
	for i, seg := range expr.Segments {
		if seg.Descendant {
			return 0, fmt.Errorf("descendant segment %s cannot be expanded", seg.Text)
		}
		if seg.Multi {
			dims = append(dims, i)
		}
	}

	if len(dims) == 0 {
		if len(sc.positions) > 0 {
			return 0, fmt.Errorf("position %d given but no wildcard, filter or slice to expand", sc.positions[0])
		}
		// A concrete scope is its own dimension and matches at most once.
		return len(expr.Segments) - 1, nil
	}
	if len(sc.positions) == 0 {
		return dims[len(dims)-1], nil
	}

	p := sc.positions[0]
	if p < 1 || p > len(dims) {
		return 0, fmt.Errorf("position %d out of range 1..%d", p, len(dims))
	}
	return dims[p-1], nil
}

// rewrite returns a fresh copy of fragment with every path string under
// prefix moved under concrete. Strings that do not parse are left for the
// evaluator to report.
func (e *Evaluator) rewrite(fragment *tree.Object, prefix, concrete []pathexpr.Segment) any {
	// Multi-valued prefix segments that became concrete shift the positions of
	// nested scopes.
	fixed := 0
	for i := range prefix {
		if prefix[i].Multi && !concrete[i].Multi {
			fixed++
		}
	}

	return tree.MapStrings(fragment, func(s string) string {
		if !pathexpr.IsPathString(s) {
			return s
		}

		sc := parseScope(s)
		parsed, err := e.querier.Parse(sc.expr)
		if err != nil || !parsed.HasPrefix(prefix) {
			return s
		}

		for i := range sc.positions {
			sc.positions[i] = max(sc.positions[i]-fixed, 0)
		}

		rest := parsed.Segments[len(prefix):]
		return pathexpr.Stringify(slices.Concat(concrete, rest)) + sc.suffix()
	})
}
