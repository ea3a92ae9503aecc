package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jacoelho/jtx/internal/exit"
	"github.com/jacoelho/jtx/internal/loader"
	"github.com/jacoelho/jtx/internal/traverse"
)

// Stdin is the -input value that reads the document from standard input.
const Stdin = "-"

var (
	ErrNoArguments        = errors.New("no arguments provided")
	ErrNoTemplate         = errors.New("no template specified")
	ErrUnexpectedArgument = errors.New("unexpected argument")
	ErrInvalidRateLimit   = errors.New("rate limit cannot be negative")
	ErrInvalidMaxDepth    = errors.New("max depth must be positive")
	ErrInvalidTimeout     = errors.New("timeout cannot be negative")
)

// Config represents the complete configuration for the jtx tool.
type Config struct {
	Template string
	Input    string
	Output   string // empty writes to stdout

	Format loader.Format
	Indent bool

	Deferred  bool
	RateLimit float64 // mapping-function calls per second (0 = unlimited)
	MaxDepth  int
	Timeout   time.Duration // 0 = none

	Debug bool
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Template == "" {
		return ErrNoTemplate
	}
	if _, err := os.Stat(c.Template); err != nil {
		return fmt.Errorf("template file %s not found: %w", c.Template, err)
	}

	if c.Input != Stdin {
		if _, err := os.Stat(c.Input); err != nil {
			return fmt.Errorf("input file %s not found: %w", c.Input, err)
		}
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("%w, got: %g", ErrInvalidRateLimit, c.RateLimit)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w, got: %d", ErrInvalidMaxDepth, c.MaxDepth)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w, got: %s", ErrInvalidTimeout, c.Timeout)
	}

	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		template  = fs.String("template", "", "Template file (JSON, YAML or TOML by extension)")
		input     = fs.String("input", Stdin, "Document file (JSON, YAML or TOML); - reads JSON from stdin")
		output    = fs.String("output", "", "Output file (default stdout)")
		format    = fs.String("format", string(loader.FormatJSON), "Output format: json, yaml or toml")
		indent    = fs.Bool("indent", false, "Pretty-print JSON output")
		deferred  = fs.Bool("deferred", false, "Compute one key at a time in the background")
		rateLimit = fs.Float64("rate-limit", 0, "Mapping-function calls per second (0 for unlimited)")
		maxDepth  = fs.Int("max-depth", traverse.DefaultMaxDepth, "Maximum template nesting")
		timeout   = fs.Duration("timeout", 0, "Abort the transformation after this long (0 for none)")
		debug     = fs.Bool("debug", false, "Log fan-out and omitted keys to stderr")
	)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	if fs.NArg() > 0 {
		return nil, exit.Errorf("Error: %v: %s\n\n%s", ErrUnexpectedArgument, fs.Arg(0), Usage())
	}

	outputFormat, err := loader.ParseFormat(*format)
	if err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	config := &Config{
		Template:  *template,
		Input:     *input,
		Output:    *output,
		Format:    outputFormat,
		Indent:    *indent,
		Deferred:  *deferred,
		RateLimit: *rateLimit,
		MaxDepth:  *maxDepth,
		Timeout:   *timeout,
		Debug:     *debug,
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `jtx - JSON template transformer

Usage: jtx --template FILE [options]

Options:
  --template FILE         Template file (JSON, YAML or TOML by extension)
  --input FILE            Document file; JSON, YAML or TOML by extension (default: - for stdin)
  --output FILE           Write the result to FILE instead of stdout
  --format FORMAT         Output format: json, yaml or toml (default: json)
  --indent                Pretty-print JSON output
  --deferred              Compute one key at a time in the background
  --rate-limit N          Mapping-function calls per second (0 for unlimited)
  --max-depth N           Maximum template nesting (default: 1000)
  --timeout DURATION      Abort the transformation after DURATION
  --debug                 Log fan-out and omitted keys to stderr
  -h, --help              Show this help message

Examples:
  jtx --template report.json --input runs.json
  cat runs.json | jtx --template report.yaml --indent
  jtx --template report.json --input runs.toml --format yaml
  jtx --template report.json --input runs.json --output report.out.json`
}
