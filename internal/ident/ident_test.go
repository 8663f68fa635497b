package ident

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{name: "simple", id: "workspace-1", ok: true},
		{name: "single char", id: "a", ok: true},
		{name: "underscores", id: "thread_0042", ok: true},
		{name: "uuid style", id: "550e8400-e29b-41d4-a716-446655440000", ok: true},
		{name: "max length", id: strings.Repeat("x", 256), ok: true},
		{name: "empty", id: "", ok: false},
		{name: "too long", id: strings.Repeat("x", 257), ok: false},
		{name: "path separator", id: "a/b", ok: false},
		{name: "parent traversal", id: "..", ok: false},
		{name: "space", id: "a b", ok: false},
		{name: "dot", id: "a.b", ok: false},
		{name: "backslash", id: `a\b`, ok: false},
		{name: "non-ascii", id: "café", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.id, "thread id")
			if tc.ok && err != nil {
				t.Fatalf("Validate(%q) = %v, want nil", tc.id, err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("Validate(%q) = nil, want error", tc.id)
				}
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Validate(%q) = %v, want ErrInvalid", tc.id, err)
				}
			}
		})
	}
}

func TestValidateLabelInMessage(t *testing.T) {
	err := Validate("", "workspace id")
	if err == nil || !strings.Contains(err.Error(), "workspace id") {
		t.Fatalf("error should name the label: %v", err)
	}
}
