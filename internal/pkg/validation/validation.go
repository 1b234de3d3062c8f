package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Codes (branch and project) allow ASCII letters, digits, hyphen and underscore.
var codeRe = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)

const (
	MinYear = 1900
	MaxYear = 2100
)

func IsValidCode(code string) bool {
	return codeRe.MatchString(code)
}

func IsValidYear(year int) bool {
	return year >= MinYear && year <= MaxYear
}

// MaxLength compares the rune count of s against max.
func MaxLength(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}

// IsBlank reports whether s is empty after trimming whitespace (including full-width spaces).
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
