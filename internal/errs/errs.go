// Package errs defines the typed errors shared across the import pipeline.
package errs

import (
	"fmt"
	"strings"
)

// ParseError represents a recoverable error on a single CSV line.
// Parse errors are collected per file and never abort the whole import.
type ParseError struct {
	Line    int
	Column  string
	Message string
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ValidationError is returned when the external validator rejects staged
// ledger content. The original file is untouched when this surfaces.
type ValidationError struct {
	FilePath string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.FilePath, strings.Join(e.Errors, "; "))
}

// ProcessError represents a failed external process invocation: binary
// missing, timeout, or a non-zero exit for reasons other than validation.
type ProcessError struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process failed (exit %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("process failed (exit %d): %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// NotFoundError marks a lookup miss that is fatal to the operation but not
// to the process: a stale rule id, a missing backup file.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}
