package sequence

import "testing"

func TestAdvanceWraps(t *testing.T) {
	s := New()
	key := Key{Kind: "seq", Discriminant: "a|b|c"}
	values := []string{"a", "b", "c"}

	got := []string{
		s.Advance(key, values),
		s.Advance(key, values),
		s.Advance(key, values),
		s.Advance(key, values),
	}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("advance %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	s := New()
	key := Key{Kind: "seq", Discriminant: "a|b"}
	values := []string{"a", "b"}

	first := s.Peek(key, values)
	second := s.Peek(key, values)
	if first != second {
		t.Fatalf("peek should be idempotent, got %q then %q", first, second)
	}
	if first != "a" {
		t.Fatalf("peek = %q, want %q", first, "a")
	}
}

func TestGCStaleDropsUnreferenced(t *testing.T) {
	s := New()
	key := Key{Kind: "seq", Discriminant: "x|y"}
	values := []string{"x", "y"}

	s.Advance(key, values)
	if s.Len() != 1 {
		t.Fatalf("expected 1 cursor after first use, got %d", s.Len())
	}

	// Second preparse_prompts() call references nothing.
	s.ClearRanFlags()
	s.GCStale()

	if s.Len() != 0 {
		t.Fatalf("expected cursor to be GC'd after an unreferenced round, got %d entries", s.Len())
	}
}

func TestGCStaleKeepsReferenced(t *testing.T) {
	s := New()
	key := Key{Kind: "seq", Discriminant: "x|y"}
	values := []string{"x", "y"}

	s.Advance(key, values)
	s.ClearRanFlags()
	s.Advance(key, values) // referenced again this round
	s.GCStale()

	if s.Len() != 1 {
		t.Fatalf("expected cursor referenced this round to survive GC, got %d entries", s.Len())
	}
}

func TestPeekInitializesWithoutMarkingReferenced(t *testing.T) {
	s := New()
	key := Key{Kind: "wc", Discriminant: "colors_abc123"}
	values := []string{"red", "green", "blue"}

	s.Peek(key, values)
	s.ClearRanFlags()
	s.GCStale()

	if s.Len() != 0 {
		t.Fatalf("peek-only cursor should not survive GC, got %d entries", s.Len())
	}
}
