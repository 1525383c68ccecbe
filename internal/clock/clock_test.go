package clock

import "testing"

func TestAdvance(t *testing.T) {
	c := New()
	if c.Now() != 0 {
		t.Fatalf("expected 0, got %d", c.Now())
	}
	c.Advance(100)
	if c.Now() != 100 {
		t.Fatalf("expected 100, got %d", c.Now())
	}
	c.Advance(50)
	if c.Now() != 150 {
		t.Fatalf("expected 150, got %d", c.Now())
	}
}

func TestAdvanceIgnoresNegative(t *testing.T) {
	c := New()
	c.Advance(100)
	c.Advance(-10)
	if c.Now() != 100 {
		t.Fatalf("expected negative advance to be ignored, got %d", c.Now())
	}
}
