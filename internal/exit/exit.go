// Package exit carries the message and status a command finishes with.
package exit

import (
	"fmt"
	"io"
)

const (
	CodeSuccess = 0
	CodeFailure = 1
)

// Result holds the message, its stream and the process exit code.
type Result struct {
	Code    int
	Message string
	Stderr  bool
}

// Print writes the message to stderr for failures and stdout otherwise.
func (r *Result) Print(stdout, stderr io.Writer) {
	w := stdout
	if r.Stderr {
		w = stderr
	}
	fmt.Fprint(w, r.Message)
}

func Success(message string) *Result {
	return &Result{Code: CodeSuccess, Message: message}
}

func Error(message string) *Result {
	return &Result{Code: CodeFailure, Message: message, Stderr: true}
}

func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}

// FromError reports err on stderr, or succeeds silently when err is nil.
func FromError(err error) *Result {
	if err == nil {
		return Success("")
	}
	return Errorf("Error: %v\n", err)
}
