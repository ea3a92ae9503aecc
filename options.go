package jtx

import (
	"io"
	"log/slog"

	"github.com/jacoelho/jtx/internal/functions"
	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/traverse"
)

// DefaultMaxDepth is the nesting limit used unless WithMaxDepth says otherwise.
const DefaultMaxDepth = traverse.DefaultMaxDepth

// Option configures a Transformer.
type Option func(*options)

type options struct {
	functions Registry
	logger    *slog.Logger
	maxDepth  int
	rateLimit float64
	cacheSize int
}

func defaultOptions() options {
	return options{
		functions: functions.Builtins(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth:  DefaultMaxDepth,
		cacheSize: pathexpr.DefaultCacheSize,
	}
}

// WithFunctions replaces the function registry. Pass Builtins().Merge(r) to
// keep the built-in functions.
func WithFunctions(r Registry) Option {
	return func(o *options) {
		o.functions = r
	}
}

// WithFunction registers fn under name, overriding a built-in of the same name.
func WithFunction(name string, fn Func) Option {
	return func(o *options) {
		o.functions = o.functions.With(name, fn)
	}
}

// WithLogger sets the logger for debug records about fan-out and omitted keys.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxDepth bounds template nesting. Values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithRateLimit throttles mapping-function invocations to perSecond calls per
// second across the transformer. 0 means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) {
		o.rateLimit = perSecond
	}
}

// WithPathCacheSize sets how many compiled path expressions are kept.
func WithPathCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}
