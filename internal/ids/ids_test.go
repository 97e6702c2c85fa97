package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNew_Monotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		prev = next
	}
}

func TestNew_ParsesAsULID(t *testing.T) {
	if _, err := ulid.ParseStrict(New()); err != nil {
		t.Fatalf("id is not a valid ULID: %v", err)
	}
}
