package conversation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id, err := NewID(time.Time{})
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("len(id) = %d, want 26", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewID_SortsByTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a, _ := NewID(base)
	b, _ := NewID(base.Add(time.Second))
	if a >= b {
		t.Errorf("NewID(t0) = %q, NewID(t1) = %q; want t0 < t1", a, b)
	}
}

func TestValidateID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id string
		ok bool
	}{
		{"01JABCDEFGHJKMNPQRSTVWXYZ0", true},
		{"ticket-42_v2.b", true},
		{strings.Repeat("a", MaxIDLength), true},
		{strings.Repeat("a", MaxIDLength+1), false},
		{"", false},
		{"a/b", false},
		{"a b", false},
		{"a\x00b", false},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id)
		if got := err == nil; got != tt.ok {
			t.Errorf("ValidateID(%q) = %v, want ok %v", tt.id, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) = %v, want ErrInvalidID", tt.id, err)
		}
	}
}
