// Package htmlsanitize provides HTML sanitization for user-supplied text such
// as file, folder, and share descriptions. It uses bluemonday to strip
// potentially dangerous HTML while preserving safe formatting.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// richPolicy is the shared bluemonday policy for rich-text descriptions.
	richPolicy *bluemonday.Policy
	// strictPolicy strips all markup, leaving plain text.
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once
)

func initPolicies() {
	policyOnce.Do(func() {
		// UGC (User Generated Content) policy plus common text formatting
		richPolicy = bluemonday.UGCPolicy()
		richPolicy.AllowElements("u", "s", "sub", "sup", "mark")

		strictPolicy = bluemonday.StrictPolicy()
	})
}

// Sanitize cleans HTML input, removing potentially dangerous elements and
// attributes. It preserves safe formatting like bold, italic, lists, and links.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	initPolicies()
	return richPolicy.Sanitize(html)
}

// Description cleans a description field down to plain text. All markup is
// stripped and surrounding whitespace trimmed. Use this before storing
// descriptions supplied through the API.
func Description(s string) string {
	if s == "" {
		return ""
	}
	initPolicies()
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// IsPlainText checks if content appears to be plain text (no HTML tags).
func IsPlainText(content string) bool {
	if content == "" {
		return true
	}
	// Valid HTML tags require both < and >, so if either is missing,
	// treat as plain text
	return !strings.Contains(content, "<") || !strings.Contains(content, ">")
}
