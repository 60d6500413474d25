package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys emitted verbatim by MaskField. Farm identifiers are public on-chain
// data and stay readable.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"method":    {},
	"caller":    {},
	"requestid": {},
	"donor":     {},
	"owner":     {},
	"tokenid":   {},
	"season":    {},
	"schedule":  {},
}

// Keys masked wherever they appear, including in attrs logged without
// MaskField.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"bearer":        {},
	"jwt":           {},
	"auth_token":    {},
	"password":      {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsAllowlisted reports whether key is exempt from MaskField redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[normalizeKey(key)]
	return ok
}

// IsSensitive reports whether values logged under key are always masked.
// Any key ending in "secret" counts.
func IsSensitive(key string) bool {
	key = normalizeKey(key)
	if _, ok := sensitiveKeys[key]; ok {
		return true
	}
	return strings.HasSuffix(key, "secret")
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns an attr carrying value only when key is allowlisted.
// Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is applied by the handler to every attr in a record.
func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
