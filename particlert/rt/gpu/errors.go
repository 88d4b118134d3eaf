package gpu

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDesc      = errors.New("invalid buffer description")
	ErrNotCreated       = errors.New("resource not created")
	ErrEntryNotFound    = errors.New("entry point not found")
	ErrNotReadable      = errors.New("buffer is not readable")
	ErrUnsupportedQuery = errors.New("query not supported by device")
)

// CompileError carries the backend diagnostic for a kernel or program that failed to build.
type CompileError struct {
	Source     string
	Entry      string
	Diagnostic string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s:%s: %s", e.Source, e.Entry, e.Diagnostic)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Fatalf logs through logger and panics with the same message.
// Reserved for programming errors that leave the pipeline unusable.
func Fatalf(logger Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if logger != nil {
		logger.Errorf("%s", msg)
	}
	panic(msg)
}
