package geom

import "testing"

func TestCombineRotationMirror(t *testing.T) {
	tests := []struct {
		name       string
		rot        Rotation
		mirror     bool
		addRot     Rotation
		addMirror  bool
		wantRot    Rotation
		wantMirror bool
	}{
		{"identity", RotNone, false, RotNone, false, RotNone, false},
		{"plain rotation adds", Rot90, false, Rot90, false, Rot180, false},
		{"rotation wraps", Rot270, false, Rot180, false, Rot90, false},
		{"mirror flips sign", Rot90, true, Rot90, false, RotNone, true},
		{"mirror flips sign wrap", RotNone, true, Rot90, false, Rot270, true},
		{"mirrors cancel", Rot90, true, RotNone, true, Rot90, false},
		{"mirror then mirror+rot", Rot180, true, Rot270, true, Rot270, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rot, mirror := CombineRotationMirror(tt.rot, tt.mirror, tt.addRot, tt.addMirror)
			if rot != tt.wantRot || mirror != tt.wantMirror {
				t.Errorf("CombineRotationMirror(%d,%v,%d,%v) = (%d,%v), want (%d,%v)",
					tt.rot, tt.mirror, tt.addRot, tt.addMirror, rot, mirror, tt.wantRot, tt.wantMirror)
			}
		})
	}
}

// The rotate/mirror pairs form the dihedral group of the square, so applying
// transforms one after the other must agree with applying their composition.
func TestCombineRotationMirrorAssociative(t *testing.T) {
	type rm struct {
		rot    Rotation
		mirror bool
	}
	var elems []rm
	for r := RotNone; r <= Rot270; r++ {
		elems = append(elems, rm{r, false}, rm{r, true})
	}

	for _, e := range elems {
		for _, a := range elems {
			for _, b := range elems {
				// e with a applied, then b applied.
				r1, m1 := CombineRotationMirror(e.rot, e.mirror, a.rot, a.mirror)
				r1, m1 = CombineRotationMirror(r1, m1, b.rot, b.mirror)

				// a with b applied, applied to e in one step.
				ra, ma := CombineRotationMirror(a.rot, a.mirror, b.rot, b.mirror)
				r2, m2 := CombineRotationMirror(e.rot, e.mirror, ra, ma)

				if r1 != r2 || m1 != m2 {
					t.Fatalf("associativity broken for e=%v a=%v b=%v: (%d,%v) != (%d,%v)",
						e, a, b, r1, m1, r2, m2)
				}
			}
		}
	}
}

func TestComposeTransformMapsSourceOntoTarget(t *testing.T) {
	tests := []struct {
		name  string
		rot   Rotation
		hflip bool
		src   Rect
		dst   Rect
	}{
		{"identity scale", RotNone, false, Rect{0, 0, 100, 100}, Rect{0, 0, 200, 200}},
		{"offset target", RotNone, false, Rect{0, 0, 1280, 720}, Rect{160, 0, 1600, 900}},
		{"quarter turn", Rot90, false, Rect{0, 0, 200, 100}, Rect{0, 0, 100, 200}},
		{"half turn", Rot180, false, Rect{0, 0, 640, 480}, Rect{0, 0, 640, 480}},
		{"mirrored", RotNone, true, Rect{0, 0, 800, 600}, Rect{0, 0, 400, 300}},
		{"rotated and mirrored", Rot270, true, Rect{0, 0, 1920, 1080}, Rect{420, 0, 1080, 1920}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ComposeTransform(tt.rot, tt.hflip, tt.src, tt.dst)
			got := m.ApplyToRect(tt.src)
			if got != tt.dst {
				t.Errorf("ApplyToRect(src) = %v, want %v", got, tt.dst)
			}
		})
	}
}

func TestApplyToRectNormalizesMirroredAxes(t *testing.T) {
	m := Scale(-1, 1)
	got := m.ApplyToRect(Rect{X: 10, Y: 0, W: 30, H: 20})
	want := Rect{X: -40, Y: 0, W: 30, H: 20}
	if got != want {
		t.Errorf("ApplyToRect = %v, want %v", got, want)
	}
}

func TestApplyToRectRoundsEdges(t *testing.T) {
	// Scaling 10 wide by 1/3 puts the far edge at 3.33; the width must come
	// from the rounded far edge, not from rounding the width itself.
	m := Scale(1.0/3.0, 1.0/3.0)
	got := m.ApplyToRect(Rect{X: 0, Y: 0, W: 10, H: 10})
	want := Rect{X: 0, Y: 0, W: 3, H: 3}
	if got != want {
		t.Errorf("ApplyToRect = %v, want %v", got, want)
	}

	// The far edge of adjacent rectangles stays consistent: the right edge
	// of {0,0,10,10} equals the left edge of {10,0,10,10} after mapping.
	left := m.ApplyToRect(Rect{X: 0, Y: 0, W: 10, H: 10})
	right := m.ApplyToRect(Rect{X: 10, Y: 0, W: 10, H: 10})
	if left.Right() != right.X {
		t.Errorf("adjacent rects drifted apart: %d vs %d", left.Right(), right.X)
	}
}

func TestMatrixMultiplyOrder(t *testing.T) {
	// Translate-then-scale differs from scale-then-translate.
	ts := Scale(2, 2).Multiply(Translate(10, 0))
	got := ts.ApplyToRect(Rect{0, 0, 1, 1})
	if got.X != 20 {
		t.Errorf("scale·translate moved origin to %d, want 20", got.X)
	}

	st := Translate(10, 0).Multiply(Scale(2, 2))
	got = st.ApplyToRect(Rect{0, 0, 1, 1})
	if got.X != 10 {
		t.Errorf("translate·scale moved origin to %d, want 10", got.X)
	}
}
