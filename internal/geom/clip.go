package geom

import "errors"

// ErrNotVisible reports that a window is entirely outside the visible
// region, or that clipping left a zero-area window or crop. It is not a
// failure: the caller disables the affected pipeline and moves on.
var ErrNotVisible = errors.New("geom: window not visible")

// ClipToVisibleRegion clips win against vis and shrinks crop proportionally
// to match. The window lives in display space while the crop lives in buffer
// space, related by rot quarter turns and an optional horizontal mirror, so
// the crop is first re-signed into display orientation, adjusted along the
// clipped axes, and then re-signed back into buffer orientation.
//
// Returns ErrNotVisible when win has non-positive size, lies fully outside
// vis, or the crop collapses to zero area. Clipping an already-clipped pair
// against the same region returns it unchanged.
func ClipToVisibleRegion(win, crop Rect, rot Rotation, mirror bool, vis Rect) (Rect, Rect, error) {
	wxy := [2]int{win.X, win.Y}
	wwh := [2]int{win.W, win.H}
	cxy := [2]int{crop.X, crop.Y}
	cwh := [2]int{crop.W, crop.H}
	lt := [2]int{vis.X, vis.Y}
	rb := [2]int{vis.Right(), vis.Bottom()}

	swap := 0
	if rot.Swapped() {
		swap = 1
	}

	// Negating an extent flips the axis while keeping the far edge fixed.
	flip := func(i int) {
		cwh[i] = -cwh[i]
		cxy[i] -= cwh[i]
	}

	// Align the crop axes with display coordinates.
	if swap == 1 {
		flip(1)
	}
	if rot&2 != 0 {
		flip(1 - swap)
	}
	if !mirror != (rot&2 == 0) {
		flip(swap)
	}

	for c := 0; c < 2; c++ {
		cs := c ^ swap

		// Degenerate window, region, or crop along this axis.
		if wwh[c] <= 0 || rb[c] <= lt[c] ||
			wxy[c]+wwh[c] <= lt[c] || wxy[c] >= rb[c] ||
			cwh[cs] == 0 {
			return Rect{}, Rect{}, ErrNotVisible
		}

		// Clip the leading edge, moving the crop proportionally. The crop
		// extent may be negative here; truncating division keeps the
		// adjustment on the mirrored side.
		if wxy[c] < lt[c] {
			adj := (lt[c] - wxy[c]) * cwh[cs] / wwh[c]
			cxy[cs] += adj
			cwh[cs] -= adj
			wwh[c] -= lt[c] - wxy[c]
			wxy[c] = lt[c]
		}

		// Clip the trailing edge.
		if wxy[c]+wwh[c] > rb[c] {
			cwh[cs] = cwh[cs] * (rb[c] - wxy[c]) / wwh[c]
			wwh[c] = rb[c] - wxy[c]
		}

		if cwh[cs] == 0 || wwh[c] == 0 {
			return Rect{}, Rect{}, ErrNotVisible
		}
	}

	// Realign the crop with buffer coordinates, in reverse order.
	if !mirror != (rot&2 == 0) {
		flip(swap)
	}
	if rot&2 != 0 {
		flip(1 - swap)
	}
	if swap == 1 {
		flip(1)
	}

	return Rect{X: wxy[0], Y: wxy[1], W: wwh[0], H: wwh[1]},
		Rect{X: cxy[0], Y: cxy[1], W: cwh[0], H: cwh[1]}, nil
}
