package shader

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrDirectiveSyntax is returned when a directive line does not parse.
	ErrDirectiveSyntax = errors.New("directive syntax error")
	// ErrInvalidScope is returned for #else or #endif with no open scope.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrIncludeCycle is returned when an include re-enters a module already on the include stack.
	ErrIncludeCycle = errors.New("include cycle detected")
	// ErrIncludeNotFound is returned when an include names an unregistered module.
	ErrIncludeNotFound = errors.New("include target not defined")
	// ErrDefineNotFound is returned when a ${KEY} substitution names no define.
	ErrDefineNotFound = errors.New("define value not found")
	// ErrInvalidDefineValue is returned when a define or #if literal does not parse.
	ErrInvalidDefineValue = errors.New("invalid define value")
	// ErrInvalidIfOperation is returned when #if uses an unknown operator.
	ErrInvalidIfOperation = errors.New("invalid #if operation")
	// ErrUnsupportedIfOperation is returned when #if operands cannot be compared.
	ErrUnsupportedIfOperation = errors.New("unsupported #if operation")
	// ErrUnterminatedScope is returned when input ends with scopes still open.
	ErrUnterminatedScope = errors.New("unterminated scope")
)

// PreprocessError describes where and why a Build failed. It matches its Kind with errors.Is.
type PreprocessError struct {
	// Kind is one of the package sentinel errors.
	Kind error
	// Label is the label passed to Build.
	Label string
	// Module is the include module the line came from, or empty for the root source.
	Module string
	// Line is the offending source line.
	Line string
	// LineNumber is 1-based within Module.
	LineNumber int
	// Key is the define key involved, if any.
	Key string
	// Stack is the include stack at the failure, outermost first.
	Stack []string
	// Defs is the caller defines passed to Build.
	Defs map[string]Value
	// RuntimeDefs is the defines set by #define before the failure.
	RuntimeDefs map[string]Value
	// Depth is the open scope depth for ErrUnterminatedScope.
	Depth int

	detail string
}

func (e *PreprocessError) Error() string {
	var sb strings.Builder
	if e.Label != "" {
		fmt.Fprintf(&sb, "%s: ", e.Label)
	}
	sb.WriteString(e.Kind.Error())
	if e.detail != "" {
		fmt.Fprintf(&sb, ": %s", e.detail)
	}

	switch {
	case errors.Is(e.Kind, ErrIncludeCycle):
		fmt.Fprintf(&sb, " (module %q, stack [%s])", e.Module, strings.Join(e.Stack, " -> "))
	case errors.Is(e.Kind, ErrUnterminatedScope):
		fmt.Fprintf(&sb, " (depth %d)", e.Depth)
	case errors.Is(e.Kind, ErrDefineNotFound):
		fmt.Fprintf(&sb, " (key %q, defs [%s], runtime defs [%s])", e.Key, formatDefs(e.Defs), formatDefs(e.RuntimeDefs))
	}

	if e.LineNumber > 0 {
		module := e.Module
		if module == "" {
			module = "<root>"
		}
		fmt.Fprintf(&sb, " at %s:%d: %q", module, e.LineNumber, strings.TrimSpace(e.Line))
	}
	return sb.String()
}

func (e *PreprocessError) Unwrap() error {
	return e.Kind
}

func formatDefs(defs map[string]Value) string {
	keys := slices.Sorted(maps.Keys(defs))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + defs[k].String()
	}
	return strings.Join(parts, ", ")
}
