package jtx

import (
	"github.com/jacoelho/jtx/internal/evaluate"
	"github.com/jacoelho/jtx/internal/functions"
	"github.com/jacoelho/jtx/internal/pathexpr"
	"github.com/jacoelho/jtx/internal/traverse"
)

var (
	ErrUnknownFunction        = evaluate.ErrUnknownFunction
	ErrMalformedScope         = evaluate.ErrMalformedScope
	ErrMultiDimensionalFanOut = evaluate.ErrMultiDimensionalFanOut
	ErrInvalidInstruction     = evaluate.ErrInvalidInstruction
	ErrMalformedPath          = pathexpr.ErrMalformedPath
	ErrMaxDepthExceeded       = traverse.ErrMaxDepthExceeded
	ErrIndexNotFound          = functions.ErrIndexNotFound
)

// PathError attributes a failure to the template path being produced, e.g.
// $.runs[2].total.
type PathError = evaluate.PathError
