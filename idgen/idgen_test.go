package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNanoIDLengthAndAlphabet(t *testing.T) {
	for _, length := range []int{8, 12, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !strings.ContainsRune(nanoAlphabet, c) {
				t.Fatalf("NanoID: character %q outside alphabet in %q", c, id)
			}
		}
	}
}

func TestNanoIDUniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7Valid(t *testing.T) {
	id := UUIDv7()()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("version: got %d, want 7", u.Version())
	}
}

func TestUUIDv7TimeSortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		next := gen()
		if next <= prev {
			t.Fatalf("not monotonic at %d: %q then %q", i, prev, next)
		}
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("job_", NanoID(8))()
	if !strings.HasPrefix(id, "job_") {
		t.Fatalf("missing prefix: %q", id)
	}
	if len(id) != len("job_")+8 {
		t.Fatalf("length: got %d", len(id))
	}
}

func TestDefaultIsUUIDv7(t *testing.T) {
	u, err := uuid.Parse(New())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("version: got %d, want 7", u.Version())
	}
}
