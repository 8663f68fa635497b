// Package ident validates externally supplied identifiers before they are
// interpolated into filesystem paths or process arguments. It is the sole
// defense against path traversal via workspace and thread IDs; every caller
// that builds a path from an identifier must validate it here first.
package ident

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid identifier")

const maxLength = 256

// Validate checks that id is non-empty, at most 256 characters, and contains
// only alphanumerics, hyphens, and underscores. label names the identifier in
// error messages ("workspace id", "thread id").
func Validate(id, label string) error {
	if id == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalid, label)
	}
	if len(id) > maxLength {
		return fmt.Errorf("%w: %s is too long", ErrInvalid, label)
	}
	for _, c := range id {
		if !safeChar(c) {
			return fmt.Errorf("%w: %s contains invalid characters (only alphanumeric, hyphens, underscores allowed)", ErrInvalid, label)
		}
	}
	return nil
}

func safeChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
