package tracker

import (
	"strings"
)

// NormalizeHandle trims whitespace, strips leading "@" and lowercases a handle.
// It is idempotent and fails with ErrInvalidInput when nothing is left.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	h = strings.TrimLeft(h, "@")
	h = strings.ToLower(strings.TrimSpace(h))
	if h == "" {
		return "", Invalid("handle is required")
	}
	if strings.ContainsAny(h, " \t\r\n/?#&") {
		return "", Invalid("handle contains invalid characters")
	}
	return h, nil
}

// NormalizeID trims a provider-assigned numeric identifier.
func NormalizeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", Invalid("id is required")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", Invalid("id must be numeric")
		}
	}
	return id, nil
}
