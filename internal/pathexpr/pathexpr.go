// Package pathexpr adapts an RFC 9535 JSONPath engine to the operations the
// template evaluator needs: single and multi-valued lookups, enumeration of
// the concrete locations matched by a scope, and a segment-level view of an
// expression used to classify and rewrite queries.
//
// Paths produced here use dot notation for member names that are plain
// identifiers and brackets otherwise: $, $.foo, $.foo[3].bar, $["a b"].
package pathexpr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/theory/jsonpath"
	"github.com/theory/jsonpath/spec"
)

// Root is the path of the document (and template) root.
const Root = "$"

var (
	pathStringRe = regexp.MustCompile(`^\$(\.|\[)`)
	identRe      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	numericKeyRe = regexp.MustCompile(`^\d+$`)
	lastIndexRe  = regexp.MustCompile(`\[(\d+)\][^\[]*$`)

	// lastElement is the rendering of the [-1:] slice, the one slice that
	// template authors use to mean a single value.
	lastElement = jsonpath.MustParse("$[-1:]").Query().Segments()[0].String()
)

// Segment is one step of a path expression.
type Segment struct {
	// Text is the canonical rendering: ".name", "[0]", "[*]", `["a b"]`, "..x".
	Text string
	// Multi is true when the step can select more than one node.
	Multi bool
	// Descendant is true for ".." steps.
	Descendant bool
}

// Expr is a parsed path expression.
type Expr struct {
	Segments []Segment
}

// String renders the expression in canonical form.
func (e Expr) String() string {
	return Stringify(e.Segments)
}

// MultiValued reports whether the expression can yield more than one value:
// any wildcard, filter, slice, union or descendant step makes it so, except a
// [-1:] slice.
func (e Expr) MultiValued() bool {
	for _, seg := range e.Segments {
		if seg.Multi {
			return true
		}
	}
	return false
}

// HasPrefix reports whether the leading segments of e equal prefix.
func (e Expr) HasPrefix(prefix []Segment) bool {
	if len(prefix) > len(e.Segments) {
		return false
	}
	for i, seg := range prefix {
		if e.Segments[i].Text != seg.Text {
			return false
		}
	}
	return true
}

// Stringify renders segments as a path expression rooted at $.
func Stringify(segments []Segment) string {
	var b strings.Builder
	b.WriteString(Root)
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Querier is the query engine contract the evaluator depends on.
type Querier interface {
	// Parse splits an expression into segments.
	Parse(expr string) (Expr, error)
	// Value returns the first match of expr, reporting whether there was one.
	Value(doc any, expr string) (any, bool, error)
	// Query returns every match of expr in document order.
	Query(doc any, expr string) ([]any, error)
	// Paths returns the concrete location of every match of expr in
	// document order.
	Paths(doc any, expr string) ([]Expr, error)
}

// Engine implements Querier on top of github.com/theory/jsonpath, keeping
// compiled expressions in an LRU cache. Safe for concurrent use.
type Engine struct {
	cache *cache
}

var _ Querier = (*Engine)(nil)

// New returns an engine caching up to cacheSize compiled expressions; a
// non-positive size selects DefaultCacheSize.
func New(cacheSize int) *Engine {
	return &Engine{cache: newCache(cacheSize)}
}

func (e *Engine) Parse(expr string) (Expr, error) {
	c, err := e.compile(expr)
	if err != nil {
		return Expr{}, err
	}
	return c.expr, nil
}

func (e *Engine) Value(doc any, expr string) (any, bool, error) {
	c, err := e.compile(expr)
	if err != nil {
		return nil, false, err
	}

	nodes := c.path.Select(doc)
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

func (e *Engine) Query(doc any, expr string) ([]any, error) {
	c, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	nodes := c.path.Select(doc)
	out := make([]any, len(nodes))
	copy(out, nodes)
	return out, nil
}

func (e *Engine) Paths(doc any, expr string) ([]Expr, error) {
	c, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	located := c.path.SelectLocated(doc)
	out := make([]Expr, 0, len(located))
	for _, node := range located {
		out = append(out, normalizedExpr(node.Path))
	}
	return out, nil
}

func (e *Engine) compile(expr string) (compiled, error) {
	if c, ok := e.cache.get(expr); ok {
		return c, nil
	}

	path, err := jsonpath.Parse(expr)
	if err != nil {
		return compiled{}, fmt.Errorf("%w %q: %v", ErrMalformedPath, expr, err)
	}

	c := compiled{path: path, expr: parsedExpr(path.Query())}
	e.cache.set(expr, c)
	return c, nil
}

func parsedExpr(q *spec.PathQuery) Expr {
	segments := q.Segments()
	out := Expr{Segments: make([]Segment, 0, len(segments))}
	for _, seg := range segments {
		out.Segments = append(out.Segments, segmentOf(seg))
	}
	return out
}

func segmentOf(seg *spec.Segment) Segment {
	selectors := seg.Selectors()
	out := Segment{Descendant: seg.IsDescendant()}

	if !out.Descendant && len(selectors) == 1 {
		switch sel := selectors[0].(type) {
		case spec.Name:
			out.Text = NameSegment(string(sel))
			return out
		case spec.Index:
			out.Text = IndexSegment(int(sel))
			return out
		}
	}

	out.Text = seg.String()
	out.Multi = out.Text != lastElement
	return out
}

func normalizedExpr(path spec.NormalizedPath) Expr {
	out := Expr{Segments: make([]Segment, 0, len(path))}
	for _, elem := range path {
		switch sel := elem.(type) {
		case spec.Name:
			out.Segments = append(out.Segments, Segment{Text: NameSegment(string(sel))})
		case spec.Index:
			out.Segments = append(out.Segments, Segment{Text: IndexSegment(int(sel))})
		}
	}
	return out
}

// NameSegment renders a member-name step.
func NameSegment(name string) string {
	if identRe.MatchString(name) {
		return "." + name
	}
	quoted, _ := json.Marshal(name)
	return "[" + string(quoted) + "]"
}

// IndexSegment renders an array-index step.
func IndexSegment(index int) string {
	return "[" + strconv.Itoa(index) + "]"
}

// IsPathString reports whether v is a string that reads as a path
// expression, i.e. starts with "$." or "$[".
func IsPathString(v any) bool {
	s, ok := v.(string)
	return ok && pathStringRe.MatchString(s)
}

// AppendKey extends a template path with an object key or array index:
// numeric keys append as [k], anything else as .k.
func AppendKey(path, key string) string {
	if numericKeyRe.MatchString(key) {
		return path + "[" + key + "]"
	}
	return path + "." + key
}

// AppendIndex extends a template path with an array index.
func AppendIndex(path string, index int) string {
	return path + IndexSegment(index)
}

// LastIndex returns the last array index written in path, if any.
func LastIndex(path string) (int, bool) {
	m := lastIndexRe.FindStringSubmatch(path)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
