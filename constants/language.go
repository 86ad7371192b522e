package constants

import "strings"

// DefaultLanguage is assumed when a request does not name one.
const DefaultLanguage = "English"

// IsEnglish compares case-insensitively after trimming; an empty label counts as English.
func IsEnglish(language string) bool {
	l := strings.TrimSpace(language)
	return l == "" || strings.EqualFold(l, DefaultLanguage)
}

// LanguageOrDefault returns the trimmed label or DefaultLanguage when empty.
func LanguageOrDefault(language string) string {
	if l := strings.TrimSpace(language); l != "" {
		return l
	}
	return DefaultLanguage
}
