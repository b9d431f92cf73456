package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Record constraints.
const (
	MaxKeyLength     = 32
	MaxPayloadLength = 16 << 10 // 16KB
)

// ValidateKey checks that key can name an index entry and a backing file.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey.WithDetails("key is required")
	}
	if n := utf8.RuneCountInString(key); n > MaxKeyLength {
		return ErrInvalidKey.WithDetails(fmt.Sprintf("key length %d exceeds %d characters", n, MaxKeyLength))
	}
	if !utf8.ValidString(key) {
		return ErrInvalidKey.WithDetails("key is not valid UTF-8")
	}
	if key == "." || key == ".." || strings.ContainsAny(key, "/\\\x00") {
		return ErrInvalidKey.WithDetails("key must be a plain file name")
	}
	return nil
}

// ValidatePayload checks that data is a JSON object or array within the
// size limit.
func ValidatePayload(data string) error {
	if data == "" {
		return ErrInvalidPayload.WithDetails("data is required")
	}
	if len(data) > MaxPayloadLength {
		return ErrInvalidPayload.WithDetails(fmt.Sprintf("data size %d exceeds %d bytes", len(data), MaxPayloadLength))
	}
	if !IsStructured([]byte(data)) {
		return ErrInvalidPayload.WithDetails("data is not a JSON object or array")
	}
	return nil
}

// IsStructured reports whether b is a single well-formed JSON object or array.
func IsStructured(b []byte) bool {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return json.Valid(trimmed)
}
