package utils

import (
	"strings"
)

// NormalizeEmailAddress strips display names, angle brackets and surrounding
// whitespace and lowercases the bare address.
func NormalizeEmailAddress(address string) string {
	address = strings.TrimSpace(address)

	if strings.Contains(address, "<") && strings.Contains(address, ">") {
		startIdx := strings.LastIndex(address, "<") + 1
		endIdx := strings.LastIndex(address, ">")
		if startIdx > 0 && endIdx > startIdx {
			address = address[startIdx:endIdx]
		}
	}

	return strings.ToLower(strings.TrimSpace(address))
}

// SameEmailAddress compares two addresses after normalization
func SameEmailAddress(a, b string) bool {
	return NormalizeEmailAddress(a) == NormalizeEmailAddress(b)
}

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = NormalizeEmailAddress(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
