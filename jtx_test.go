package jtx_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jacoelho/jtx"
	"github.com/jacoelho/jtx/internal/tree"
)

func decode(t *testing.T, s string) any {
	t.Helper()

	v, err := tree.DecodeJSON(strings.NewReader(s))
	if err != nil {
		t.Fatalf("DecodeJSON(%s) error = %v", s, err)
	}
	return v
}

func encode(t *testing.T, v any) string {
	t.Helper()

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return string(out)
}

func TestTransformScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		doc      string
		expected string
	}{
		{
			name:     "whole array",
			template: `{"x": "$.foo"}`,
			doc:      `{"foo": [{}]}`,
			expected: `{"x":[{}]}`,
		},
		{
			name:     "explicit wildcard",
			template: `{"x": "$.foo[*]"}`,
			doc:      `{"foo": [{}]}`,
			expected: `{"x":[{}]}`,
		},
		{
			name:     "first element",
			template: `{"x": "$.foo[0]"}`,
			doc:      `{"foo": [1, 2, 3]}`,
			expected: `{"x":1}`,
		},
		{
			name:     "missing nested scalar",
			template: `{"x": "$.foo[0].baz"}`,
			doc:      `{"foo": [{"bar": 1}]}`,
			expected: `{"x":null}`,
		},
		{
			name:     "sum of runs",
			template: `{"total": {"$path": "$.Runs[*].Time", "$map": "sum"}}`,
			doc:      `{"Runs": [{"Time": 2}, {"Time": 3}]}`,
			expected: `{"total":5}`,
		},
		{
			name:     "root fan-out",
			template: `[{"$each": "$.items[*]", "value": "$.items[*].v"}]`,
			doc:      `{"items": [{"v": 1}, {"v": 2}]}`,
			expected: `[{"value":1},{"value":2}]`,
		},
		{
			name:     "spread alias",
			template: `{"out": [{"$spread": "$.items[*]", "value": "$.items[*].v"}]}`,
			doc:      `{"items": [{"v": 1}, {"v": 2}]}`,
			expected: `{"out":[{"value":1},{"value":2}]}`,
		},
		{
			name:     "fan-out without matches",
			template: `{"out": [{"$each": "$.items[*]", "value": "$.items[*].v"}]}`,
			doc:      `{"items": []}`,
			expected: `{"out":[]}`,
		},
		{
			name:     "absent key",
			template: `{"x": "$.foo"}`,
			doc:      `{}`,
			expected: `{"x":null}`,
		},
		{
			name:     "key order follows template",
			template: `{"zeta": "$.a", "alpha": "$.b", "mid": {"y": 1, "b": 2}}`,
			doc:      `{"a": 1, "b": 2}`,
			expected: `{"zeta":1,"alpha":2,"mid":{"y":1,"b":2}}`,
		},
		{
			name:     "conditional omitted",
			template: `{"a": 1, "b": {"$exists": "$.missing", "v": 1}, "c": 3}`,
			doc:      `{}`,
			expected: `{"a":1,"c":3}`,
		},
		{
			name:     "conditional kept",
			template: `{"b": {"$if": "$.flag", "v": "$.flag"}}`,
			doc:      `{"flag": false}`,
			expected: `{"b":{"v":false}}`,
		},
		{
			name:     "conditional wins over bound",
			template: `{"x": {"$exists": "$.foo", "$path": "$.foo", "$map": "sum"}}`,
			doc:      `{"foo": 4}`,
			expected: `{"x":{"$path":4,"$map":"sum"}}`,
		},
		{
			name:     "conditional copies an unregistered function name",
			template: `{"x": {"$if": "$.foo", "$path": "$.foo", "$map": "nope"}}`,
			doc:      `{"foo": 4}`,
			expected: `{"x":{"$path":4,"$map":"nope"}}`,
		},
		{
			name:     "fan-out over a single location",
			template: `{"x": [{"$each": "$.item", "value": "$.item.v"}]}`,
			doc:      `{"item": {"v": 5}}`,
			expected: `{"x":[{"value":5}]}`,
		},
		{
			name:     "fan-out over a missing single location",
			template: `{"x": [{"$each": "$.item", "value": "$.item.v"}]}`,
			doc:      `{}`,
			expected: `{"x":[]}`,
		},
		{
			name:     "expanded dimension by position",
			template: `{"out": [{"$each": "$.groups[*].items[*],1", "vals": "$.groups[*].items[*].v"}]}`,
			doc:      `{"groups": [{"items": [{"v": 1}, {"v": 2}]}, {"items": [{"v": 3}]}]}`,
			expected: `{"out":[{"vals":[1,2]},{"vals":[3]}]}`,
		},
		{
			name:     "nested fan-out",
			template: `{"out": [{"$each": "$.groups[*]", "items": [{"$each": "$.groups[*].items[*]", "v": "$.groups[*].items[*].v"}]}]}`,
			doc:      `{"groups": [{"items": [{"v": 1}, {"v": 2}]}, {"items": [{"v": 3}]}]}`,
			expected: `{"out":[{"items":[{"v":1},{"v":2}]},{"items":[{"v":3}]}]}`,
		},
		{
			name:     "index under fan-out",
			template: `{"rows": [{"$each": "$.items[*]", "i": {"$path": "$.items[*].v", "$map": "index"}, "v": "$.items[*].v"}]}`,
			doc:      `{"items": [{"v": "a"}, {"v": "b"}]}`,
			expected: `{"rows":[{"i":0,"v":"a"},{"i":1,"v":"b"}]}`,
		},
		{
			name:     "literal strings untouched",
			template: `{"note": "costs $5", "tpl": "$foo", "root": "$"}`,
			doc:      `{"foo": 1}`,
			expected: `{"note":"costs $5","tpl":"$foo","root":"$"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := jtx.Transform(decode(t, tt.template), decode(t, tt.doc))
			if err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			if out := encode(t, got); out != tt.expected {
				t.Fatalf("Transform() = %s, want %s", out, tt.expected)
			}
		})
	}
}

func TestTransformLiteralsPassThrough(t *testing.T) {
	t.Parallel()

	templates := []string{
		`{}`,
		`[]`,
		`"plain"`,
		`42`,
		`null`,
		`{"a": [1, "two", true, null, {"b": [[]]}], "c": {"d": 1.5}}`,
		`[{"x": "y"}, [1, 2], "z"]`,
	}
	docs := []string{`{}`, `{"a": 1}`, `[1, 2, 3]`}

	for _, template := range templates {
		for _, doc := range docs {
			got, err := jtx.Transform(decode(t, template), decode(t, doc))
			if err != nil {
				t.Fatalf("Transform(%s) error = %v", template, err)
			}
			if out, want := encode(t, got), encode(t, decode(t, template)); out != want {
				t.Fatalf("Transform(%s) = %s, want template back", template, out)
			}
		}
	}
}

func TestTransformPlainMaps(t *testing.T) {
	t.Parallel()

	template := map[string]any{
		"name":  "$.user.name",
		"count": map[string]any{"$path": "$.user.tags[*]", "$map": "sum"},
	}
	doc := map[string]any{
		"user": map[string]any{"name": "ada", "tags": []int{1, 2, 3}},
	}

	got, err := jtx.Transform(template, doc)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out := encode(t, got); out != `{"count":6,"name":"ada"}` {
		t.Fatalf("Transform() = %s", out)
	}
	if _, ok := doc["user"].(map[string]any)["name"]; !ok {
		t.Fatal("document was modified")
	}
}

func TestTransformErrorAttribution(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	tr, err := jtx.Compile(
		decode(t, `{"a": {"b": {"$path": "$.x", "$map": "explode"}}}`),
		jtx.WithFunction("explode", func(context.Context, jtx.Call) (any, error) {
			return nil, errBoom
		}),
	)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	out, err := tr.Transform(context.Background(), decode(t, `{"x": 1}`))
	if !errors.Is(err, errBoom) {
		t.Fatalf("Transform() error = %v, want %v", err, errBoom)
	}
	if out != nil {
		t.Fatalf("Transform() = %v, want no partial output", out)
	}
	if !strings.Contains(err.Error(), `"$.a.b"`) {
		t.Fatalf("Transform() error = %q, want path $.a.b", err)
	}

	var pathErr *jtx.PathError
	if !errors.As(err, &pathErr) || pathErr.Path != "$.a.b" {
		t.Fatalf("Transform() error = %v, want PathError at $.a.b", err)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		expected error
		path     string
	}{
		{
			name:     "unknown function",
			template: `{"runs": [1, 2, {"total": {"$path": "$.x", "$map": "nope"}}]}`,
			expected: jtx.ErrUnknownFunction,
			path:     "$.runs[2].total",
		},
		{
			name:     "malformed path",
			template: `{"a": {"b": "$.foo[?"}}`,
			expected: jtx.ErrMalformedPath,
			path:     "$.a.b",
		},
		{
			name:     "two fan-out positions",
			template: `{"list": [{"$each": "$.a[*].b[*],1,2", "v": 1}]}`,
			expected: jtx.ErrMultiDimensionalFanOut,
			path:     "$.list",
		},
		{
			name:     "position on a scope without dimension",
			template: `{"list": [{"$each": "$.a.b,1", "v": 1}]}`,
			expected: jtx.ErrMalformedScope,
			path:     "$.list",
		},
		{
			name:     "position suffix outside a fan-out scope",
			template: `{"a": {"b": "$.a[*],2"}}`,
			expected: jtx.ErrMalformedPath,
			path:     "$.a.b",
		},
		{
			name:     "position suffix on a fan-out value",
			template: `{"list": [{"$each": "$.a[*]", "v": "$.a[*].v,1"}]}`,
			expected: jtx.ErrMalformedPath,
			path:     "$.list[0].v",
		},
		{
			name:     "nested deeper than the limit",
			template: deepTemplate(jtx.DefaultMaxDepth + 2),
			expected: jtx.ErrMaxDepthExceeded,
			path:     "$" + strings.Repeat(".n", jtx.DefaultMaxDepth+1),
		},
		{
			name:     "function name not a string",
			template: `{"x": {"$path": "$.a", "$map": 3}}`,
			expected: jtx.ErrInvalidInstruction,
			path:     "$.x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := jtx.Compile(decode(t, tt.template))
			if !errors.Is(err, tt.expected) {
				t.Fatalf("Compile() error = %v, want %v", err, tt.expected)
			}
			if !strings.Contains(err.Error(), `"`+tt.path+`"`) {
				t.Fatalf("Compile() error = %q, want path %s", err, tt.path)
			}
		})
	}
}

func TestCompileUnsupportedTemplate(t *testing.T) {
	t.Parallel()

	if _, err := jtx.Compile(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("Compile() error = nil, want error")
	}
}

func TestIndexOutsideArray(t *testing.T) {
	t.Parallel()

	_, err := jtx.Transform(decode(t, `{"i": {"$path": "$.a", "$map": "index"}}`), decode(t, `{"a": 1}`))
	if !errors.Is(err, jtx.ErrIndexNotFound) {
		t.Fatalf("Transform() error = %v, want %v", err, jtx.ErrIndexNotFound)
	}
}

// deepTemplate returns n objects nested under "n" keys.
func deepTemplate(n int) string {
	return strings.Repeat(`{"n": `, n) + `"$.x"` + strings.Repeat("}", n)
}

func TestMaxDepth(t *testing.T) {
	t.Parallel()

	if _, err := jtx.Compile(decode(t, deepTemplate(3)), jtx.WithMaxDepth(3)); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	_, err := jtx.Compile(decode(t, deepTemplate(4)), jtx.WithMaxDepth(2))
	if !errors.Is(err, jtx.ErrMaxDepthExceeded) {
		t.Fatalf("Compile() error = %v, want %v", err, jtx.ErrMaxDepthExceeded)
	}
	if !strings.Contains(err.Error(), `"$.n.n.n"`) {
		t.Fatalf("Compile() error = %q, want path $.n.n.n", err)
	}
}

func TestCompileCyclicTemplate(t *testing.T) {
	t.Parallel()

	var template jtx.Object
	template.Set("a", "$.x")
	template.Set("self", &template)

	_, err := jtx.Compile(&template, jtx.WithMaxDepth(50))
	if !errors.Is(err, jtx.ErrMaxDepthExceeded) {
		t.Fatalf("Compile() error = %v, want %v", err, jtx.ErrMaxDepthExceeded)
	}

	var pathErr *jtx.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("Compile() error = %T, want *jtx.PathError", err)
	}
	if want := "$" + strings.Repeat(".self", 51); pathErr.Path != want {
		t.Fatalf("Path = %q, want %q", pathErr.Path, want)
	}
}

func TestTransformCyclicDocument(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"x": 1.0}
	doc["self"] = doc

	if _, err := jtx.Transform(decode(t, `{"x": "$.x"}`), doc); !errors.Is(err, jtx.ErrMaxDepthExceeded) {
		t.Fatalf("Transform() error = %v, want %v", err, jtx.ErrMaxDepthExceeded)
	}
}

func TestTransformDeferred(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)
	tag := func(_ context.Context, call jtx.Call) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, call.Path)
		return call.Value, nil
	}

	template := decode(t, `{
		"first": {"$path": "$.items[0]", "$map": "tag"},
		"rows": [{"$each": "$.items[*]", "v": {"$path": "$.items[*]", "$map": "tag"}}],
		"last": {"$path": "$.items[1]", "$map": "tag"}
	}`)
	tr, err := jtx.Compile(template, jtx.WithFunction("tag", tag), jtx.WithRateLimit(1000))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	future := tr.TransformDeferred(context.Background(), decode(t, `{"items": ["a", "b"]}`))
	got, err := future.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	<-future.Done()

	if out := encode(t, got); out != `{"first":"a","rows":[{"v":"a"},{"v":"b"}],"last":"b"}` {
		t.Fatalf("Await() = %s", out)
	}

	want := "$.first $.rows[0].v $.rows[1].v $.last"
	if strings.Join(order, " ") != want {
		t.Fatalf("call order = %v, want %s", order, want)
	}

	immediate, err := tr.Transform(context.Background(), decode(t, `{"items": ["a", "b"]}`))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if encode(t, immediate) != encode(t, got) {
		t.Fatalf("Transform() = %s, deferred = %s", encode(t, immediate), encode(t, got))
	}
}

func TestTransformDeferredCancelled(t *testing.T) {
	t.Parallel()

	block := func(ctx context.Context, _ jtx.Call) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	tr, err := jtx.Compile(decode(t, `{"x": {"$path": "$.a", "$map": "block"}}`), jtx.WithFunction("block", block))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	future := tr.TransformDeferred(ctx, decode(t, `{"a": 1}`))
	cancel()

	if _, err := future.Await(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() error = %v, want %v", err, context.Canceled)
	}
}

func TestWithFunctionsReplacesBuiltins(t *testing.T) {
	t.Parallel()

	upper := func(_ context.Context, call jtx.Call) (any, error) {
		return strings.ToUpper(call.Value.(string)), nil
	}
	registry := jtx.Registry{"shout": upper}

	if _, err := jtx.Compile(decode(t, `{"x": {"$path": "$.a", "$map": "sum"}}`), jtx.WithFunctions(registry)); !errors.Is(err, jtx.ErrUnknownFunction) {
		t.Fatalf("Compile() error = %v, want %v", err, jtx.ErrUnknownFunction)
	}

	tr, err := jtx.Compile(
		decode(t, `{"x": {"$path": "$.a", "$map": "shout"}, "n": {"$path": "$.n[*]", "$map": "max"}}`),
		jtx.WithFunctions(jtx.Builtins().Merge(registry)),
	)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got, err := tr.Transform(context.Background(), decode(t, `{"a": "hi", "n": [3, 9, 4]}`))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out := encode(t, got); out != `{"x":"HI","n":9}` {
		t.Fatalf("Transform() = %s", out)
	}
}
