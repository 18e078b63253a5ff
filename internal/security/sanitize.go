// Package security provides input sanitization and upload gating for
// the planner. All functions are pure and side-effect free; the rate
// limiter is the only stateful component.
package security

import (
	"path/filepath"
	"strconv"
	"strings"
)

// formulaPrefixes are characters that spreadsheet software interprets
// as the start of a formula. Cells beginning with one of these are
// neutralized before they can reach an exported file.
var formulaPrefixes = []string{"=", "+", "-", "@", "\t", "\r"}

// SanitizeCellValue trims a cell value and neutralizes spreadsheet
// formula injection by prefixing dangerous values with a single quote,
// which spreadsheet software treats as "plain text".
func SanitizeCellValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	for _, prefix := range formulaPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return "'" + trimmed
		}
	}

	return trimmed
}

// htmlReplacer escapes characters that are dangerous in HTML contexts.
var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// SanitizeForDisplay escapes a string for safe HTML rendering.
func SanitizeForDisplay(value string) string {
	if value == "" {
		return ""
	}
	return htmlReplacer.Replace(value)
}

// ValidateTextInput strips HTML/XML-dangerous characters and script
// scheme prefixes, trims, and truncates the result to maxLength.
func ValidateTextInput(value string, maxLength int) string {
	if value == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case '<', '>', '\'', '"', '&':
			continue
		}
		b.WriteRune(r)
	}

	sanitized := b.String()
	sanitized = stripSchemeFold(sanitized, "javascript:")
	sanitized = stripSchemeFold(sanitized, "data:")
	sanitized = strings.TrimSpace(sanitized)

	if maxLength >= 0 && len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength]
	}

	return sanitized
}

// stripSchemeFold removes every case-insensitive occurrence of scheme
// from s. Repeats until none remain so "javajavascript:script:" cannot
// reassemble a removed scheme.
func stripSchemeFold(s, scheme string) string {
	for {
		idx := indexFold(s, scheme)
		if idx < 0 {
			return s
		}
		s = s[:idx] + s[idx+len(scheme):]
	}
}

// indexFold is a case-insensitive strings.Index for ASCII needles.
func indexFold(s, needle string) int {
	n := len(needle)
	if n == 0 || len(s) < n {
		return -1
	}
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], needle) {
			return i
		}
	}
	return -1
}

// ValidateNumericInput parses value as a base-10 integer and clamps it
// to [min, max]. Non-numeric input yields min.
func ValidateNumericInput(value string, min, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return min
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// ClampInt clamps an already-parsed integer to [min, max].
func ClampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// ValidateSelectInput returns value if it appears in allowed, otherwise
// the first allowed value. An empty allowed list yields "".
func ValidateSelectInput(value string, allowed []string) string {
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return ""
}

// ValidateFileSize reports whether size is within maxSizeMB megabytes.
func ValidateFileSize(size int64, maxSizeMB int) bool {
	return size <= int64(maxSizeMB)*1024*1024
}

// ValidateFileType reports whether the file name's extension is in the
// allowed list. Extensions are compared lowercase and without the dot.
func ValidateFileType(name string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}
