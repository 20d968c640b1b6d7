// Package diag provides diagnostic (error/warning) types for the compiler.
package diag

import (
	"fmt"
	"strings"

	"kaml/internal/span"
)

// Code ranges used across the front-end: E1xxx lexical errors, E2xxx
// syntax errors, E3xxx semantic (parse-time) errors. See spec §7.
const (
	ClassLex      = "lex"
	ClassSyntax   = "syntax"
	ClassSemantic = "semantic"
	ClassUnknown  = "unknown"
)

// Severity indicates the severity of a diagnostic.
type Severity int

const (
	Error   Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic represents a compiler diagnostic message.
type Diagnostic struct {
	Code     string    `json:"code"`               // stable error code, e.g. "E2001"
	Severity Severity  `json:"severity"`            // error or warning
	Message  string    `json:"message"`             // human-readable description
	Span     span.Span `json:"span"`                // source location
	Hint     string    `json:"hint,omitempty"`       // optional hint
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	prefix := d.Severity.String()
	loc := fmt.Sprintf("%d:%d", d.Span.Start.Line, d.Span.Start.Column)
	msg := fmt.Sprintf("[%s] %s at %s: %s", d.Code, prefix, loc, d.Message)
	if d.Hint != "" {
		msg += " (hint: " + d.Hint + ")"
	}
	return msg
}

// Class reports which error-taxonomy bucket (spec §7) a diagnostic's code
// falls into, based on its leading digit (E1=lex, E2=syntax, E3=semantic).
func (d Diagnostic) Class() string {
	switch {
	case strings.HasPrefix(d.Code, "E1"):
		return ClassLex
	case strings.HasPrefix(d.Code, "E2"):
		return ClassSyntax
	case strings.HasPrefix(d.Code, "E3"):
		return ClassSemantic
	default:
		return ClassUnknown
	}
}

// Errorf creates an error diagnostic at the given span.
func Errorf(code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// Warningf creates a warning diagnostic at the given span.
func Warningf(code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Warning,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}
