package ids

import (
	"strings"
	"testing"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected ulid length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = true
	}
}

func TestNew_Sortable(t *testing.T) {
	a := New()
	b := New()
	if !(a < b) {
		t.Errorf("expected monotonic ordering: %q then %q", a, b)
	}
}

func TestNumber_Prefix(t *testing.T) {
	n := Number("TRF")
	if !strings.HasPrefix(n, "TRF-") {
		t.Errorf("expected TRF- prefix, got %q", n)
	}
	if len(n) != 4+26 {
		t.Errorf("unexpected length: %q", n)
	}
}
