package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys whose values are stored payloads. They are logged as a
// size only.
var payloadKeys = map[string]struct{}{
	"data":    {},
	"payload": {},
	"value":   {},
	"body":    {},
}

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
	"bearer",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive rewrites payload and secret attributes.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if IsPayloadKey(a.Key) {
		switch v := a.Value.Any().(type) {
		case string:
			return slog.String(a.Key, PayloadSize(len(v)))
		case []byte:
			return slog.String(a.Key, PayloadSize(len(v)))
		}
		return a
	}

	if a.Value.Kind() == slog.KindString && a.Value.String() != "" && IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redactedValue)
	}

	return a
}

// PayloadSize renders the placeholder logged instead of a payload.
func PayloadSize(n int) string {
	return fmt.Sprintf("<%d bytes>", n)
}

// IsPayloadKey reports whether an attribute key names a stored payload.
func IsPayloadKey(key string) bool {
	_, ok := payloadKeys[strings.ToLower(key)]
	return ok
}

// IsSensitiveKey checks if a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
