package logging

import "strings"

// secretKeyPatterns flag attribute keys whose values must never reach a log.
// Matching is case-insensitive.
var secretKeyPatterns = []string{
	"TOKEN",
	"KEY",
	"SECRET",
	"PASSWORD",
	"AUTH",
	"CREDENTIAL",
	"PRIVATE",
}

// tokenPrefixes flag values that are credentials regardless of key name.
var tokenPrefixes = []string{
	"eyJ", // JWT header (action tokens, bearer credentials)
	"ghp_",
	"sk-",
	"AKIA",
	"xoxb-",
	"xoxp-",
}

// ShouldMask reports whether key names sensitive data.
func ShouldMask(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range secretKeyPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// ContainsTokenPrefix reports whether value starts with a known credential prefix.
func ContainsTokenPrefix(value string) bool {
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// MaskValue keeps the last four characters of values longer than four.
func MaskValue(value string) string {
	if len(value) <= 4 {
		return "********"
	}
	return "****" + value[len(value)-4:]
}
