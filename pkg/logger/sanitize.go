package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedIdentifier masks an identifier value according to its shape.
// Emails are masked like SanitizedEmail; everything else (IPs, client
// fingerprints) keeps a short prefix only.
func SanitizedIdentifier(value string) string {
	if strings.Contains(value, "@") {
		return SanitizedEmail(value)
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return value
}

// SanitizeQueryString checks if a query string contains sensitive
// parameters and returns true if it should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"token",
		"secret",
		"email",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
