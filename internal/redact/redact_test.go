package redact

import (
	"strings"
	"testing"
)

func TestSensitiveMatchesFragments(t *testing.T) {
	cases := map[string]bool{
		"identifier":      true,
		"user_identifier": true,
		"Checksum":        true,
		"integrity_tag":   true,
		"password_hash":   true,
		"shared_secret":   true,
		"reason":          false,
		"op":              false,
		"count":           false,
	}
	for name, want := range cases {
		if got := Sensitive(name); got != want {
			t.Errorf("Sensitive(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTruncateCapsLongValues(t *testing.T) {
	short := "short value"
	if got := Truncate(short); got != short {
		t.Fatalf("short value altered: %q", got)
	}

	long := strings.Repeat("x", 500)
	got := Truncate(long)
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if len(got) >= len(long) {
		t.Fatal("truncated value not shorter than input")
	}
}

func TestMapRedactsAndCopies(t *testing.T) {
	in := map[string]string{
		"identifier": "alice@example.com",
		"reason":     "expired",
		"detail":     strings.Repeat("y", 300),
	}

	out := Map(in)
	if out["identifier"] != Marker {
		t.Fatalf("sensitive field not redacted: %q", out["identifier"])
	}
	if out["reason"] != "expired" {
		t.Fatalf("benign field altered: %q", out["reason"])
	}
	if !strings.HasSuffix(out["detail"], TruncationMarker) {
		t.Fatalf("long value not truncated: %q", out["detail"])
	}
	if in["identifier"] != "alice@example.com" {
		t.Fatal("input map mutated")
	}
}

func TestMapNilStaysNil(t *testing.T) {
	if Map(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}
