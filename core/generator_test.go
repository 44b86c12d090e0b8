package core

import "testing"

func testWheel(t *testing.T) *Wheel {
	t.Helper()
	w, err := BuildCamWheel(&CamConfig{
		Name: "test",
		Entries: []CamEntry{
			{1000, EdgeRising}, {2000, EdgeFalling}, {3000, EdgeRising}, {30000, EdgeFalling},
		},
	})
	if err != nil {
		t.Fatalf("BuildCamWheel failed: %v", err)
	}
	return w
}

func TestGeneratorForwardWrap(t *testing.T) {
	w, _ := CrankWheel(0)
	g := NewGenerator(w)

	for i := 0; i < w.Len(); i++ {
		ev := g.Next()
		if int(ev.Index) != i {
			t.Fatalf("Step %d: expected index %d, got %d", i, i, ev.Index)
		}
	}

	// Wraps on the configured count, not the table capacity
	if ev := g.Next(); ev.Index != 0 {
		t.Errorf("Expected wrap to event 0, got %d", ev.Index)
	}
}

func TestGeneratorReset(t *testing.T) {
	g := NewGenerator(testWheel(t))
	g.Next()
	g.Next()
	if g.Position() != 2 {
		t.Errorf("Expected position 2, got %d", g.Position())
	}

	g.Reset()
	if ev := g.Next(); ev.Index != 0 {
		t.Errorf("Expected event 0 after reset, got %d", ev.Index)
	}
}

func TestGeneratorReverse(t *testing.T) {
	w := testWheel(t)
	n := w.Len()

	fwd := NewGenerator(w)
	forward := make([]AngleEvent, n)
	for i := range forward {
		forward[i] = fwd.Next()
	}

	rev := NewGenerator(w)
	rev.SetDirection(Reverse)
	for i := 0; i < 2*n; i++ {
		ev := rev.Next()
		want := forward[(n-i%n)%n]
		if ev != want {
			t.Errorf("Reverse step %d: expected index %d, got %d", i, want.Index, ev.Index)
		}
	}
}

func TestGeneratorBind(t *testing.T) {
	g := NewGenerator(testWheel(t))
	g.Next()

	crank, _ := CrankWheel(1)
	g.Bind(crank)
	if g.Len() != crank.Len() || g.Position() != 0 {
		t.Errorf("Bind should switch wheels and reset, got len %d pos %d", g.Len(), g.Position())
	}
}
