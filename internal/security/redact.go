// Package security keeps vendor credentials out of logs and error messages.
package security

import (
	"regexp"
	"strings"
)

// sensitivePatterns match credentials embedded in URLs and messages. The
// first submatch is kept and the second is masked.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([?&](?:api_token|token|apikey|api_key)=)([^&\s"']+)`),
	regexp.MustCompile(`(?i)((?:secret[_-]?key|access[_-]?key|password)[=:]\s*)([^\s"'&]+)`),
}

// MaskCredential masks a credential for display, keeping a short prefix
// and suffix of long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// Redact masks every credential found in s.
func Redact(s string) string {
	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllStringFunc(s, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			return parts[1] + MaskCredential(parts[2])
		})
	}
	return s
}

// ContainsSensitiveData reports whether s carries a credential.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}
