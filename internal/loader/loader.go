// Package loader reads templates and documents from JSON, YAML and TOML and
// writes transformation results as JSON, YAML or TOML.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/jacoelho/jtx/internal/tree"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var (
	ErrUnknownFormat = errors.New("unknown format")
	ErrDecode        = errors.New("decode failed")
	ErrTOMLRoot      = errors.New("toml output requires an object at the root")
)

// ParseFormat accepts json, yaml, yml and toml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatOf guesses the format from a file extension, defaulting to JSON.
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	}
	return FormatJSON
}

// Decode reads one value. Objects come back as *tree.Object in document order,
// except TOML tables, whose keys are sorted.
func Decode(r io.Reader, format Format) (any, error) {
	var (
		v   any
		err error
	)

	switch format {
	case FormatJSON:
		v, err = tree.DecodeJSON(r)
	case FormatYAML:
		v, err = decodeYAML(r)
	case FormatTOML:
		v, err = decodeTOML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, format, err)
	}

	return v, nil
}

func decodeYAML(r io.Reader) (any, error) {
	var v any
	if err := yaml.NewDecoder(r, yaml.UseOrderedMap()).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return tree.Normalize(v)
}

func decodeTOML(r io.Reader) (any, error) {
	var v map[string]any
	if _, err := toml.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return tree.Normalize(v)
}

// ReadFile decodes path using the format implied by its extension. "-" reads
// stdin as JSON.
func ReadFile(path string, stdin io.Reader) (any, error) {
	if path == "-" {
		return Decode(stdin, FormatJSON)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	v, err := Decode(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Encode writes v followed by a newline. indent pretty-prints JSON; YAML and
// TOML are always block style.
func Encode(w io.Writer, v any, format Format, indent bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if indent {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil

	case FormatYAML:
		out, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(true), yaml.AutoInt())
		if err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		_, err = w.Write(out)
		return err

	case FormatTOML:
		plain, err := tree.Plain(v)
		if err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
		table, ok := plain.(map[string]any)
		if !ok {
			return fmt.Errorf("encode TOML: %w, got %T", ErrTOMLRoot, plain)
		}
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.Indent = ""
		if err := enc.Encode(table); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
		_, err = w.Write(buf.Bytes())
		return err
	}

	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
