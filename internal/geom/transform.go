package geom

// Rotation counts quarter turns (90° steps), always reduced modulo 4.
type Rotation int

const (
	RotNone Rotation = iota
	Rot90
	Rot180
	Rot270
)

// Swapped reports whether the rotation exchanges the horizontal and
// vertical axes.
func (r Rotation) Swapped() bool { return r&1 == 1 }

// Degrees returns the rotation in degrees.
func (r Rotation) Degrees() int { return int(r&3) * 90 }

// Transform describes how composed output is mapped onto a display: a
// quarter-turn rotation, an optional horizontal mirror, the visible
// sub-region of the panel, and the full affine matrix combining them.
// Scaling is set when the composed resolution differs from the region,
// meaning every pipeline window must be run through the matrix.
type Transform struct {
	Rotation Rotation
	HFlip    bool
	Region   Rect
	Scaling  bool
	Matrix   Matrix
}

// ComposeTransform builds the matrix mapping the source extent onto the
// target region. The order is fixed: translate the source center to the
// origin, rotate, mirror, scale to the target extents, then translate to
// the target center. An odd rotation swaps the source extents before the
// scale factors are derived.
func ComposeTransform(rot Rotation, hflip bool, src, dst Rect) Matrix {
	m := Translate(-(float64(src.X) + float64(src.W)/2), -(float64(src.Y) + float64(src.H)/2))
	m = RotateQuarter(rot).Multiply(m)
	if hflip {
		m = Scale(-1, 1).Multiply(m)
	}

	sw, sh := src.W, src.H
	if rot.Swapped() {
		sw, sh = sh, sw
	}
	if sw > 0 && sh > 0 {
		m = Scale(float64(dst.W)/float64(sw), float64(dst.H)/float64(sh)).Multiply(m)
	}

	return Translate(float64(dst.X)+float64(dst.W)/2, float64(dst.Y)+float64(dst.H)/2).Multiply(m)
}

// CombineRotationMirror concatenates two rotate/mirror transforms: the
// layer's own (existing) followed by an applied display transform. Mirror
// and rotation do not commute (F*R = R^-1*F), so the applied rotation is
// subtracted when the existing transform already mirrors:
//
//	F^a * R^b * F^i * R^j = F^(a+i) * R^(j + b*(-1)^i)
func CombineRotationMirror(rot Rotation, mirror bool, appliedRot Rotation, appliedMirror bool) (Rotation, bool) {
	if mirror {
		rot = (rot - appliedRot) & 3
	} else {
		rot = (rot + appliedRot) & 3
	}
	return rot, mirror != appliedMirror
}
