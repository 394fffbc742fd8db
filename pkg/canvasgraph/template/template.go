// Package template handles {{key}} placeholders in prompt templates.
//
// Node configurations embed schema keys in free-text fields as
// {{key}} references. This package scans, renames, and expands those
// references; whitespace inside the braces is tolerated on input
// ({{ key }}) but never emitted on output.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{ key }} with optional inner whitespace.
// Keys follow identifier rules: [A-Za-z_][A-Za-z0-9_]*.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Variables returns the distinct placeholder names referenced in s,
// in first-occurrence order.
func Variables(s string) []string {
	if s == "" {
		return nil
	}
	var names []string
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Has reports whether s references the placeholder name.
func Has(s, name string) bool {
	for _, v := range Variables(s) {
		if v == name {
			return true
		}
	}
	return false
}

// Rename rewrites every {{ oldKey }} reference in s to {{newKey}}.
// Inner whitespace in the original placeholder is dropped.
// Returns s unchanged when oldKey is not referenced.
func Rename(s, oldKey, newKey string) string {
	if s == "" || oldKey == newKey {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if name != oldKey {
			return match
		}
		return "{{" + newKey + "}}"
	})
}

// MissingAction specifies how Expand handles unknown placeholders.
type MissingAction int

const (
	// MissingKeep keeps the placeholder as-is. Default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError returns an UndefinedVariableError.
	MissingError
)

// Expand replaces every {{ key }} in s with the value from vars,
// formatted with %v. Missing keys are handled per action.
func Expand(s string, vars map[string]any, action MissingAction) (string, error) {
	if s == "" {
		return "", nil
	}
	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		switch action {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})
	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// UndefinedVariableError is returned by Expand with MissingError when
// one or more placeholders have no value.
type UndefinedVariableError struct {
	// Names is the list of undefined placeholder names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined template variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined template variables: %s", strings.Join(e.Names, ", "))
}
