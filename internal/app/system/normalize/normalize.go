// internal/app/system/normalize/normalize.go

// Package normalize holds the small input canonicalizations applied before
// anything is written to or matched against the store.
package normalize

import "strings"

// Email lowercases and trims an email address. Empty in, empty out.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// SearchTerm prepares a user-typed search string for case-insensitive
// substring matching: trimmed and lowercased.
func SearchTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role lowercases and trims a membership role token. Validity is checked
// at the store; this only canonicalizes the spelling.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a raw query/form parameter, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
