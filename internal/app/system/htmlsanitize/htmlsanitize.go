// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips dangerous markup from user-supplied rich
// text (bios, group and event descriptions) before it is stored.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

// policy allows basic user-generated formatting (paragraphs, emphasis,
// safe links) and removes scripts, event handlers, and javascript: URLs.
var policy = bluemonday.UGCPolicy()

// Sanitize returns s with unsafe HTML removed. Plain text passes through
// unchanged.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}
