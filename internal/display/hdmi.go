package display

import (
	"fmt"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/mode"
)

// ModeApplier commits a chosen timing mode to the hardware.
type ModeApplier func(d *Display, chosen mode.Candidate) error

// ConfigureMode selects and applies the best timing mode for showing a
// srcW x srcH source (pixel aspect xpy) on this variable-mode display.
//
// When no catalog entry passes the scaling feasibility gate the sink's
// native timing is kept, re-validated against the scaler; if even the
// native timing cannot carry the source, ErrModeUnavailable is returned
// and the display must not be used for mirroring.
func (d *Display) ConfigureMode(srcW, srcH int, xpy float64, p config.Platform, check mode.ScaleCheck, apply ModeApplier) error {
	h := d.HDMIKind()
	if h == nil {
		return fmt.Errorf("display %d: not a variable-mode sink", d.ID)
	}
	if srcW <= 0 || srcH <= 0 || d.Config.Width <= 0 || d.Config.Height <= 0 {
		return fmt.Errorf("display %d: invalid resolution %dx%d", d.ID, srcW, srcH)
	}
	if check == nil {
		check = mode.CanScale
	}

	req := mode.Request{
		Width:           srcW,
		Height:          srcH,
		PixelAspect:     xpy,
		RefreshHz:       60,
		Current:         h.ActiveMode,
		AvoidModeChange: h.AvoidModeChange,
	}

	best, err := mode.SelectBestMode(h.Modes, req, p, check)
	if err != nil {
		// Fall back to the native timing and make sure it can still carry
		// the source; otherwise the output is unusable for this source.
		native := h.Native
		fitW, fitH := mode.FitDimensions(srcW, srcH, xpy, native.Width, native.Height,
			d.PhysWidthMM, d.PhysHeightMM)
		if native.PixelClockKHz <= 0 ||
			!check(srcW, srcH, fitW, fitH, true, p, native.PixelClockKHz) {
			return fmt.Errorf("display %d: native timing %s cannot carry %dx%d: %w",
				d.ID, native, srcW, srcH, mode.ErrModeUnavailable)
		}
		return nil
	}

	if best != h.ActiveMode {
		chosen := h.Modes[best]
		if apply != nil {
			if err := apply(d, chosen); err != nil {
				return fmt.Errorf("display %d: applying mode %s: %w", d.ID, chosen, err)
			}
		}
		h.ActiveMode = best
		d.Config.Width = chosen.Width
		d.Config.Height = chosen.Height
		d.Config.RefreshHz = chosen.RefreshHz

		// The viewport geometry depends on the active mode.
		pw, ph := physDims(chosen)
		fitW, fitH := mode.FitDimensions(srcW, srcH, xpy, chosen.Width, chosen.Height, pw, ph)
		region := centeredRegion(fitW, fitH, chosen.Width, chosen.Height)
		d.SetViewport(geom.Rect{W: srcW, H: srcH}, d.rotation, d.hflip, region)
	}

	return nil
}

// physDims returns the physical proportions used for aspect fitting:
// broadcast hints win over reported millimeters.
func physDims(c mode.Candidate) (int, int) {
	switch c.Aspect {
	case mode.Aspect4x3:
		return 4, 3
	case mode.Aspect16x9:
		return 16, 9
	}
	return c.PhysWidthMM, c.PhysHeightMM
}

// centeredRegion letterboxes a fitted extent inside a mode.
func centeredRegion(w, h, modeW, modeH int) geom.Rect {
	return geom.Rect{
		X: (modeW - w) / 2,
		Y: (modeH - h) / 2,
		W: w,
		H: h,
	}
}
