// Package language defines the closed set of languages codeserver can run.
package language

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by Parse for names that map to no known language.
var ErrUnsupported = errors.New("unsupported language")

// Kind identifies one supported language.
type Kind int

const (
	// Unknown is the zero value and never has a runtime attached.
	Unknown Kind = iota
	Python
	JavaScript
)

var aliases = map[string]Kind{
	"python":     Python,
	"python3":    Python,
	"py":         Python,
	"javascript": JavaScript,
	"js":         JavaScript,
	"nodejs":     JavaScript,
	"node.js":    JavaScript,
	"node":       JavaScript,
}

// Parse maps a client-supplied language name to a Kind.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(name string) (Kind, error) {
	if k, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return Unknown, fmt.Errorf("%w: %s", ErrUnsupported, name)
}

// FromFilename guesses the language from a file extension.
func FromFilename(filename string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".py":
		return Python, true
	case ".js", ".mjs", ".cjs":
		return JavaScript, true
	}
	return Unknown, false
}

// String returns the canonical lower-case name.
func (k Kind) String() string {
	switch k {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	}
	return fmt.Sprintf("language(%d)", int(k))
}

// DisplayName is the human-facing name used in error messages.
func (k Kind) DisplayName() string {
	switch k {
	case Python:
		return "Python"
	case JavaScript:
		return "JavaScript"
	}
	return k.String()
}
