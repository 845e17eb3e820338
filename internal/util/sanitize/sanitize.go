// Package sanitize cleans listing text before it reaches the backend or the
// terminal.
//
// Title hints and categories are usually pasted from a storefront page or a
// notes app, which drags along:
//   - Windows/Mac line endings (CRLF/CR)
//   - Invisible Unicode characters (zero-width spaces, etc.)
//   - Runs of whitespace
package sanitize

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Field sanitizes a single-line listing field such as a title hint or a
// category name. Line breaks collapse to single spaces.
func Field(field string) string {
	if field == "" {
		return field
	}

	// Remove invisible characters
	field = removeInvisibleChars(field)

	// Collapse whitespace runs, including line breaks, to single spaces
	field = whitespaceRun.ReplaceAllString(field, " ")

	// Trim leading/trailing whitespace
	return strings.TrimSpace(field)
}

// Tags normalizes a tag list: each tag is sanitized like a field, empty tags
// are dropped, and duplicates are removed. Generated tags sometimes arrive
// untrimmed or duplicated.
func Tags(raw []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, tag := range raw {
		tag = Field(tag)
		if tag == "" {
			continue
		}
		if !seen[tag] {
			seen[tag] = true
			result = append(result, tag)
		}
	}
	return result
}

// removeInvisibleChars removes zero-width and other invisible Unicode characters
func removeInvisibleChars(s string) string {
	// List of invisible characters to remove
	invisibleChars := []string{
		"​", // Zero-width space
		"‌", // Zero-width non-joiner
		"‍", // Zero-width joiner
		"\uFEFF", // Zero-width no-break space (BOM)
		"­", // Soft hyphen
		"⁠", // Word joiner
		"᠎", // Mongolian vowel separator
	}

	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}

	return s
}
