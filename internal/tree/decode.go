package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed indicates the JSON token stream does not form a single value.
	ErrMalformed = errors.New("tree: malformed JSON")

	// ErrUnsupported indicates a Go value that has no JSON representation.
	ErrUnsupported = errors.New("tree: unsupported value")
)

type frame struct {
	obj     *Object
	arr     []any
	isObj   bool
	key     string
	needKey bool
}

// frameStack tracks the containers that are still open while decoding.
type frameStack []frame

func (s *frameStack) push(f frame) { *s = append(*s, f) }

func (s *frameStack) pop() (frame, bool) {
	if len(*s) == 0 {
		return frame{}, false
	}
	f := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return f, true
}

func (s *frameStack) top() *frame {
	if len(*s) == 0 {
		return nil
	}
	return &(*s)[len(*s)-1]
}

// DecodeJSON reads exactly one JSON value from r. Objects become *Object with
// keys in document order, arrays []any and numbers float64.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var (
		frames frameStack
		root   any
		done   bool
	)

	// attach hands a completed value to the enclosing container, or makes it
	// the root when no container is open.
	attach := func(value any) {
		top := frames.top()
		switch {
		case top == nil:
			root = value
			done = true
		case top.isObj:
			top.obj.Set(top.key, value)
			top.needKey = true
		default:
			top.arr = append(top.arr, value)
		}
	}

	for !done {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: unexpected end of input", ErrMalformed)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		if top := frames.top(); top != nil && top.isObj && top.needKey {
			if d, ok := tok.(json.Delim); ok && d == '}' {
				f, _ := frames.pop()
				attach(f.obj)
				continue
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("%w: object key must be a string, got %v", ErrMalformed, tok)
			}
			top.key = key
			top.needKey = false
			continue
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				frames.push(frame{obj: NewObject(0), isObj: true, needKey: true})
			case '[':
				frames.push(frame{arr: []any{}})
			case ']':
				f, _ := frames.pop()
				attach(f.arr)
			default:
				return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrMalformed, v)
			}
		case json.Number:
			n, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: number %s: %v", ErrMalformed, v, err)
			}
			attach(n)
		default:
			attach(v)
		}
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after value", ErrMalformed)
	}

	return root, nil
}
