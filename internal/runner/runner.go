// Package runner executes one jtx invocation: load the template and the
// document, transform, write the result.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jacoelho/jtx"
	"github.com/jacoelho/jtx/internal/config"
	"github.com/jacoelho/jtx/internal/exit"
	"github.com/jacoelho/jtx/internal/loader"
)

type Runner struct {
	config    *config.Config
	input     io.Reader
	output    io.Writer
	errOutput io.Writer
	logger    *slog.Logger
}

// New creates a Runner reading stdin and writing to stdout and stderr.
func New(cfg *config.Config) (*Runner, *exit.Result) {
	if cfg == nil {
		return nil, exit.Errorf("Error creating runner: missing configuration\n")
	}

	r := &Runner{
		config:    cfg,
		input:     os.Stdin,
		output:    os.Stdout,
		errOutput: os.Stderr,
	}
	r.logger = newLogger(r.errOutput, cfg.Debug)
	return r, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (r *Runner) SetInput(rd io.Reader) {
	r.input = rd
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
	r.logger = newLogger(w, r.config.Debug)
}

// Run performs the transformation and returns the process exit code.
func (r *Runner) Run(ctx context.Context) int {
	result := exit.FromError(r.run(ctx))
	result.Print(r.output, r.errOutput)
	return result.Code
}

func (r *Runner) run(ctx context.Context) error {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	template, err := loader.ReadFile(r.config.Template, nil)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	transformer, err := jtx.Compile(template,
		jtx.WithLogger(r.logger),
		jtx.WithMaxDepth(r.config.MaxDepth),
		jtx.WithRateLimit(r.config.RateLimit),
	)
	if err != nil {
		return fmt.Errorf("failed to compile template %s: %w", r.config.Template, err)
	}
	r.logger.DebugContext(ctx, "template compiled", "template", r.config.Template)

	doc, err := loader.ReadFile(r.config.Input, r.input)
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	start := time.Now()
	var out any
	if r.config.Deferred {
		out, err = transformer.TransformDeferred(ctx, doc).Await(ctx)
	} else {
		out, err = transformer.Transform(ctx, doc)
	}
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}
	r.logger.DebugContext(ctx, "document transformed", "input", r.config.Input, "deferred", r.config.Deferred, "elapsed", time.Since(start))

	return r.write(out)
}

func (r *Runner) write(out any) error {
	if r.config.Output == "" {
		return loader.Encode(r.output, out, r.config.Format, r.config.Indent)
	}

	f, err := os.Create(r.config.Output)
	if err != nil {
		return fmt.Errorf("failed to create output %s: %w", r.config.Output, err)
	}

	if err := loader.Encode(f, out, r.config.Format, r.config.Indent); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
