package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple", "user1", false},
		{"max length", strings.Repeat("k", MaxKeyLength), false},
		{"multibyte at max length", strings.Repeat("é", MaxKeyLength), false},
		{"empty", "", true},
		{"too long", strings.Repeat("k", MaxKeyLength+1), true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"nul", "a\x00b", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"invalid utf8", "\xff\xfe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
			}
		})
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"object", `{"a":1}`, false},
		{"array", `[1,2,3]`, false},
		{"padded object", "  {\"a\": [true, null]}\n", false},
		{"empty", "", true},
		{"scalar string", `"hello"`, true},
		{"scalar number", `42`, true},
		{"truncated", `{"a":`, true},
		{"trailing garbage", `{"a":1} x`, true},
		{"two documents", `{} {}`, true},
		{"plain text", "hello", true},
		{"too large", `{"a":"` + strings.Repeat("x", MaxPayloadLength) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("ValidatePayload() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}
