package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	// WHAT: consecutive IDs are distinct and well-formed.
	gen := UUIDv7()
	seen := make(map[string]bool)
	for range 100 {
		id := gen()
		if len(id) != 36 {
			t.Fatalf("unexpected id format: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestTimestamped(t *testing.T) {
	gen := Timestamped(func() string { return "sfx" })
	id := gen()
	if !strings.HasSuffix(id, "_sfx") {
		t.Fatalf("id = %q, want _sfx suffix", id)
	}
	if len(id) != len("20060102T150405Z_sfx") {
		t.Fatalf("id = %q, unexpected length", id)
	}
}

func TestNew(t *testing.T) {
	if New() == New() {
		t.Fatal("Default generator repeated an id")
	}
}
