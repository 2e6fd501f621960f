package arcade

import (
	"math"
	"testing"
)

func TestPointDistTo(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 3, Y: 4}
	if d := a.DistTo(b); d != 5 {
		t.Errorf("DistTo = %f, want 5", d)
	}
	if d := a.DistTo(a); d != 0 {
		t.Errorf("DistTo self = %f, want 0", d)
	}
}

func TestPointIsFinite(t *testing.T) {
	if !(Point{X: 1, Y: 2}).IsFinite() {
		t.Error("finite point reported non-finite")
	}
	if (Point{X: math.NaN(), Y: 0}).IsFinite() {
		t.Error("NaN point reported finite")
	}
	if (Point{X: 0, Y: math.Inf(1)}).IsFinite() {
		t.Error("Inf point reported finite")
	}
}

func TestRectCenter(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 100, H: 40}
	c := r.Center()
	if c.X != 60 || c.Y != 40 {
		t.Errorf("Center = %v, want (60,40)", c)
	}
}

func TestRectArea(t *testing.T) {
	if a := (Rect{W: 10, H: 5}).Area(); a != 50 {
		t.Errorf("Area = %f, want 50", a)
	}
	if a := (Rect{W: -1, H: 5}).Area(); a != 0 {
		t.Errorf("degenerate Area = %f, want 0", a)
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 100, H: 50}
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{X: 50, Y: 25}, true},
		{Point{X: 0, Y: 0}, true},    // edge inclusive
		{Point{X: 100, Y: 50}, true}, // far edge inclusive
		{Point{X: -1, Y: 25}, false},
		{Point{X: 50, Y: 51}, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestRectInset(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 100, H: 50}
	in := r.Inset(10)
	if in.X != 10 || in.Y != 10 || in.W != 80 || in.H != 30 {
		t.Errorf("Inset(10) = %+v", in)
	}

	// Oversized inset collapses the short axis only.
	in = r.Inset(30)
	if in.H != 0 || in.Y != 25 {
		t.Errorf("oversized Inset should collapse height: %+v", in)
	}
	if in.W != 40 {
		t.Errorf("oversized Inset width = %f, want 40", in.W)
	}
}

func TestRectIsFinite(t *testing.T) {
	if !(Rect{X: 1, Y: 2, W: 3, H: 4}).IsFinite() {
		t.Error("finite rect reported non-finite")
	}
	if (Rect{X: math.Inf(-1)}).IsFinite() {
		t.Error("Inf rect reported finite")
	}
}
