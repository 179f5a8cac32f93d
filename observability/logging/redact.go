package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys that may appear in clear text. Everything passed through MaskField
// under another key is redacted: operator addresses, keystore paths, and
// fee-collector identities all route through here at startup.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"network":   {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"method":    {},
	"asset":     {},
}

// IsAllowlisted reports whether the key is exempt from redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the keys allowed in clear
// text. Tests use it to pin down the exemption set.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the redacted placeholder for non-empty values. Empty
// values pass through so absent config fields stay visibly absent.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr whose value is redacted unless the key is
// allowlisted. The key keeps its original casing.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
