package errors

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryScenario Category = "scenario"
	CategorySnapshot Category = "snapshot"
	CategoryInspect  Category = "inspect"
	CategoryCLI      Category = "cli"
)

// Location is a position in a source file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as file:line[:column].
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// AtomError is a coded error with optional location and fix suggestion.
type AtomError struct {
	// Code is a unique error identifier (e.g., "A101").
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	Location *Location

	// Context holds the source lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *AtomError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AtomError) Unwrap() error {
	return e.Wrapped
}

// WithLocation sets the file position and reads the lines around it.
func (e *AtomError) WithLocation(file string, line, column int) *AtomError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *AtomError) WithSuggestion(s string) *AtomError {
	e.Suggestion = s
	return e
}

// WithDetail replaces the detailed explanation.
func (e *AtomError) WithDetail(d string) *AtomError {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with formatting.
func (e *AtomError) WithDetailf(format string, args ...any) *AtomError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// Wrap wraps another error.
func (e *AtomError) Wrap(err error) *AtomError {
	e.Wrapped = err
	return e
}

// readContextLines reads up to contextSize lines centred on targetLine.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an AtomError from a registered code.
func New(code string) *AtomError {
	template, ok := registry[code]
	if !ok {
		return &AtomError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &AtomError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates an uncoded AtomError with a formatted message.
func Newf(category Category, format string, args ...any) *AtomError {
	return &AtomError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError returns err as an AtomError, wrapping it under code if it is
// not one already.
func FromError(err error, code string) *AtomError {
	if err == nil {
		return nil
	}
	var ae *AtomError
	if errors.As(err, &ae) {
		return ae
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is, or wraps, an AtomError with code.
func HasCode(err error, code string) bool {
	var ae *AtomError
	for err != nil {
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Wrapped
	}
	return false
}
