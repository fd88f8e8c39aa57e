package geom

import "math"

// Matrix is a 2x3 affine transformation in row-major order:
//
//	| A  B  C |
//	| D  E  F |
//
// mapping (x, y) to (A*x + B*y + C, D*x + E*y + F).
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transformation.
func Identity() Matrix {
	return Matrix{A: 1, E: 1}
}

// Translate returns a translation by (x, y).
func Translate(x, y float64) Matrix {
	return Matrix{A: 1, C: x, E: 1, F: y}
}

// Scale returns a scaling matrix. Negative factors mirror the axis.
func Scale(x, y float64) Matrix {
	return Matrix{A: x, E: y}
}

// RotateQuarter returns a rotation by rot quarter turns. Quarter-turn
// rotations stay exact in integer arithmetic, which matters for the
// drift-free rounding in ApplyToRect.
func RotateQuarter(rot Rotation) Matrix {
	switch rot & 3 {
	case RotNone:
		return Identity()
	case Rot90:
		return Matrix{B: -1, D: 1}
	case Rot180:
		return Matrix{A: -1, E: -1}
	default: // Rot270
		return Matrix{B: 1, D: -1}
	}
}

// Multiply returns m * other, the transform that applies other first.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// ApplyToRect maps a rectangle through the matrix. The origin is mapped as a
// point and the extent as a vector; negative extents from mirrored axes are
// normalized back to a min/size representation. Coordinates are rounded
// edge-wise (round origin, then derive size from the rounded far edge) so
// that repeated application does not accumulate drift between the two edges.
func (m Matrix) ApplyToRect(r Rect) Rect {
	x := m.A*float64(r.X) + m.B*float64(r.Y) + m.C
	y := m.D*float64(r.X) + m.E*float64(r.Y) + m.F
	w := m.A*float64(r.W) + m.B*float64(r.H)
	h := m.D*float64(r.W) + m.E*float64(r.H)

	if w < 0 {
		x += w
		w = -w
	}
	if h < 0 {
		y += h
		h = -h
	}

	xi := int(math.Round(x))
	yi := int(math.Round(y))
	return Rect{
		X: xi,
		Y: yi,
		W: int(math.Round(x+w)) - xi,
		H: int(math.Round(y+h)) - yi,
	}
}
