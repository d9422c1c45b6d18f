package shareid

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(id) != TokenLength {
		t.Errorf("token length = %d, want %d", len(id), TokenLength)
	}
	if id != strings.ToLower(id) {
		t.Errorf("token %q is not lowercase", id)
	}
	for _, c := range id {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz234567", c) {
			t.Errorf("token %q contains non-base32 character %q", id, c)
		}
	}
}

func TestNewDoesNotRepeat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id, err := New()
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate token after %d draws: %q", i, id)
		}
		seen[id] = true
	}
}
