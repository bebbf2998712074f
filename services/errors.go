package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceMissing means the source file does not exist.
	ErrSourceMissing = errors.New("source file not found")
	// ErrMalformedSource means the file could not be parsed as delimited text.
	ErrMalformedSource = errors.New("malformed source")
	// ErrMissingColumn means a required column is absent from the header.
	ErrMissingColumn = errors.New("required column missing")
)

// LoadError is returned by the Loader for any failure that prevents building
// the table. It is fatal for the run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError reports invalid dashboard filter parameters.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
