package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationError describes input or a record that violates the model's rules.
// No mutation is applied when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// AmbiguousMatchError is returned when anchor text occurs more than once and
// nothing distinguishes the occurrences.
type AmbiguousMatchError struct {
	Text  string
	Lines []int // start line of each occurrence
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("anchor text %s matches %d locations (lines %v); use a line range or a longer text", quote(truncate(e.Text, 40)), len(e.Lines), e.Lines)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var p *ValidationError
	if errors.As(err, &p) {
		return true
	}
	var v ValidationError
	return errors.As(err, &v)
}

// IsAmbiguous reports whether err is an AmbiguousMatchError.
func IsAmbiguous(err error) bool {
	var target *AmbiguousMatchError
	return errors.As(err, &target)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func quote(s string) string {
	return strconv.Quote(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
