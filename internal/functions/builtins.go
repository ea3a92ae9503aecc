package functions

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/jacoelho/jtx/internal/pathexpr"
)

// ErrIndexNotFound is returned by "index" when the output path has no array
// position in it.
var ErrIndexNotFound = errors.New("no array index in path")

const isoLayout = "2006-01-02T15:04:05.000Z"

var (
	isoDateRe = regexp.MustCompile(`(?i)^(\d{2}|\d{4})-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?([+-]\d{2}:?\d{2}|Z)$`)

	dateLayouts = []string{
		"2006-01-02",
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC850,
		time.ANSIC,
		"January 2, 2006",
		"Jan 2, 2006",
		"01/02/2006",
	}
)

// index returns the last array position of the output path, e.g. 3 for
// $.runs[3].ordinal.
func index(_ context.Context, call Call) (any, error) {
	n, ok := pathexpr.LastIndex(call.Path)
	if !ok {
		return nil, fmt.Errorf(`%w: "$map": "index" used outside an array at %s`, ErrIndexNotFound, call.Path)
	}
	return float64(n), nil
}

// isoDate converts dates and epoch milliseconds to UTC ISO 8601. Strings that
// are already ISO 8601 pass through unchanged.
func isoDate(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if isoDateRe.MatchString(t) {
			return t
		}
		var lastErr error
		for _, layout := range dateLayouts {
			parsed, err := time.Parse(layout, strings.TrimSpace(t))
			if err == nil {
				return parsed.UTC().Format(isoLayout)
			}
			lastErr = err
		}
		return fmt.Sprintf("Invalid date: %s. %v", t, lastErr)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Sprintf("Invalid date: %s. not a finite timestamp", toString(t))
		}
		return time.UnixMilli(int64(t)).UTC().Format(isoLayout)
	default:
		return fmt.Sprintf("Invalid date: %s. unsupported type %T", toString(v), v)
	}
}

// sum adds the numeric conversion of every item; null items count as zero.
// Anything but a non-empty array yields null.
func sum(v any) any {
	items, ok := nonEmpty(v)
	if !ok {
		return nil
	}
	return finite(total(items))
}

// avg divides the sum by the number of non-null items.
func avg(v any) any {
	items, ok := nonEmpty(v)
	if !ok {
		return nil
	}

	count := 0
	for _, item := range items {
		if item != nil {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return finite(total(items) / float64(count))
}

func minimum(v any) any {
	sorted, ok := sortedItems(v)
	if !ok {
		return nil
	}
	return sorted[0]
}

func maximum(v any) any {
	sorted, ok := sortedItems(v)
	if !ok {
		return nil
	}
	return sorted[len(sorted)-1]
}

// sortedItems orders numbers numerically; mixed arrays fall back to their
// string forms.
func sortedItems(v any) ([]any, bool) {
	items, ok := nonEmpty(v)
	if !ok {
		return nil, false
	}

	sorted := slices.Clone(items)
	numeric := true
	for _, item := range sorted {
		if _, isNum := item.(float64); !isNum {
			numeric = false
			break
		}
	}

	if numeric {
		slices.SortStableFunc(sorted, func(a, b any) int {
			return cmp.Compare(a.(float64), b.(float64))
		})
	} else {
		slices.SortStableFunc(sorted, func(a, b any) int {
			return strings.Compare(toString(a), toString(b))
		})
	}
	return sorted, true
}

func total(items []any) float64 {
	var t float64
	for _, item := range items {
		t += toNumber(item)
	}
	return t
}

func nonEmpty(v any) ([]any, bool) {
	items, ok := v.([]any)
	return items, ok && len(items) > 0
}

func trim(v any) any {
	if v == nil {
		return nil
	}
	return strings.TrimSpace(toString(v))
}

func upper(v any) any {
	if v == nil {
		return nil
	}
	return strings.ToUpper(toString(v))
}

func lower(v any) any {
	if v == nil {
		return nil
	}
	return strings.ToLower(toString(v))
}

// title uses Unicode word boundaries.
func title(v any) any {
	if v == nil {
		return nil
	}

	words := strings.Fields(toString(v))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func base64Encode(v any) any {
	if v == nil {
		return nil
	}
	return base64.StdEncoding.EncodeToString([]byte(toString(v)))
}

func uuidV4(any) any {
	return uuid.New().String()
}

// uuidV5 derives a stable identifier from the value's string form.
func uuidV5(v any) any {
	if v == nil {
		return nil
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(toString(v))).String()
}

func toNumberOrNil(v any) any {
	if v == nil {
		return nil
	}
	return finite(toNumber(v))
}

func toStringOrNil(v any) any {
	if v == nil {
		return nil
	}
	return toString(v)
}

// toNumber converts loosely: booleans to 0/1, numeric strings parsed, empty
// strings and null to 0, and anything else to NaN.
func toNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case []any:
		switch len(t) {
		case 0:
			return 0
		case 1:
			return toNumber(t[0])
		}
	}
	return math.NaN()
}

// toString renders any JSON value as text; arrays join their items with ",".
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			if item != nil {
				parts[i] = toString(item)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// finite maps NaN and infinities, which JSON cannot carry, to null.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
