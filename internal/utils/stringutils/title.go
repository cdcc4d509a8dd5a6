package stringutils

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern          = regexp.MustCompile(`(?i)(https?://|ftp://|www\.)[^\s]+`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	emailPattern        = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	multiSpacePattern   = regexp.MustCompile(`\s+`)
	nonSlugPattern      = regexp.MustCompile(`[^a-z0-9]+`)
)

// DefaultTitle is used when a chat has no usable user text.
const DefaultTitle = "New Chat"

// SanitizeTitleContent strips links, emails and symbols so the text can be used as a chat title.
func SanitizeTitleContent(content string) string {
	content = urlPattern.ReplaceAllString(content, "")
	content = markdownLinkPattern.ReplaceAllString(content, "$1")
	content = emailPattern.ReplaceAllString(content, "")

	// keep basic punctuation (.,!?-') and unicode letters/numbers
	var result strings.Builder
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) ||
			r == '.' || r == ',' || r == '!' || r == '?' || r == '-' || r == '\'' {
			result.WriteRune(r)
		}
	}
	content = multiSpacePattern.ReplaceAllString(result.String(), " ")

	content = strings.TrimSpace(content)
	return strings.TrimRight(content, " .,!?-'")
}

// TruncateTitle shortens a title to maxLen runes, preferring a word boundary, and appends an ellipsis.
func TruncateTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}

	const ellipsis = "..."
	contentLimit := maxLen - len(ellipsis)
	if contentLimit < 0 {
		contentLimit = 0
	}

	truncated := string(runes[:contentLimit])
	minLen := len(string(runes[:contentLimit/2]))

	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > minLen {
		truncated = strings.TrimRight(truncated[:lastSpace], " ")
	}
	return truncated + ellipsis
}

// GenerateTitle creates a clean, truncated title, falling back to DefaultTitle.
func GenerateTitle(content string, maxLen int) string {
	sanitized := SanitizeTitleContent(content)
	if sanitized == "" {
		return DefaultTitle
	}
	return TruncateTitle(sanitized, maxLen)
}

// Slugify lower-cases s, collapses runs of non-alphanumerics into "-" and caps the result at maxLen bytes.
func Slugify(s string, maxLen int) string {
	slug := nonSlugPattern.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}
