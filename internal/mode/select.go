package mode

import "github.com/displaykit/hwcplan/internal/config"

// ScaleCheck decides whether the scaling hardware can map a source extent
// onto a destination extent at the given sink pixel clock. twoDim is set
// when tiled 2D buffers must remain scalable as well.
type ScaleCheck func(srcW, srcH, dstW, dstH int, twoDim bool, p config.Platform, pixelClockKHz int) bool

// CanScale is the default feasibility model: per-axis up/downscale factor
// limits, with downscaling additionally bounded by the sink pixel clock the
// fetch hardware must keep up with.
func CanScale(srcW, srcH, dstW, dstH int, twoDim bool, p config.Platform, pixelClockKHz int) bool {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return false
	}

	down := p.MaxDownscale
	if twoDim && down > 1 {
		// Tiled 2D fetch cannot decimate as aggressively.
		down /= 2
		if down < 1 {
			down = 1
		}
	}
	if srcW > dstW*down || srcH > dstH*down {
		return false
	}
	if dstW > srcW*p.MaxUpscale || dstH > srcH*p.MaxUpscale {
		return false
	}

	// Downscaling multiplies the fetch rate by the decimation factor; the
	// combined rate must stay under the platform clock ceiling.
	if srcH > dstH && p.MaxPixelClockKHz > 0 && pixelClockKHz > 0 {
		if pixelClockKHz*srcH > p.MaxPixelClockKHz*dstH {
			return false
		}
	}

	return true
}

// Request describes what the caller wants out of the catalog.
type Request struct {
	// Width and Height are the source resolution to be shown on the sink.
	Width  int
	Height int
	// PixelAspect is the source pixel aspect ratio (x/y); 1.0 for square.
	PixelAspect float64
	// RefreshHz is the desired frame rate.
	RefreshHz int
	// Current is the index of the active mode, or -1 when none is active.
	Current int
	// AvoidModeChange biases selection toward the active mode.
	AvoidModeChange bool
}

// score orders candidates lexicographically. Earlier fields strictly
// dominate later ones, replacing the original's bit-packed composite.
type score struct {
	cea            int // 1 when a broadcast aspect is declared
	keep           int // 1 when this is the active mode and changes are avoided
	fit            int // 0..16, closeness to an exact fit
	coverage       int // 0..16, how little of the mode area is left unused
	refreshAtLeast int // 1 when the mode refresh meets the desired rate
	refreshClose   int // 0..255, closeness of refresh rate
}

func (s score) beats(o score) bool {
	if s.cea != o.cea {
		return s.cea > o.cea
	}
	if s.keep != o.keep {
		return s.keep > o.keep
	}
	if s.fit != o.fit {
		return s.fit > o.fit
	}
	if s.coverage != o.coverage {
		return s.coverage > o.coverage
	}
	if s.refreshAtLeast != o.refreshAtLeast {
		return s.refreshAtLeast > o.refreshAtLeast
	}
	return s.refreshClose > o.refreshClose
}

// FitDimensions returns the largest extent inside a mode that preserves the
// source aspect (width:height adjusted by the pixel aspect) on a sink with
// the given physical proportions. Zero physical dimensions assume square
// sink pixels.
func FitDimensions(srcW, srcH int, pixelAspect float64, modeW, modeH, physW, physH int) (int, int) {
	if srcW <= 0 || srcH <= 0 || modeW <= 0 || modeH <= 0 {
		return 0, 0
	}
	if physW <= 0 || physH <= 0 {
		physW, physH = modeW, modeH
	}
	if pixelAspect <= 0 {
		pixelAspect = 1
	}

	xf := float64(srcW) * pixelAspect * float64(physH)
	yf := float64(srcH) * float64(physW)
	w, h := modeW, modeH
	if xf > yf {
		h = int(float64(modeH)*yf/xf + 0.5)
	} else {
		w = int(float64(modeW)*xf/yf + 0.5)
	}
	return w, h
}

// SelectBestMode scores every candidate against the request and returns the
// index of the winner. Interlaced candidates and candidates the scaler
// cannot reach are discarded; ties keep the first candidate encountered.
// Returns ErrModeUnavailable when nothing passes the gate.
func SelectBestMode(candidates []Candidate, req Request, p config.Platform, canScale ScaleCheck) (int, error) {
	if canScale == nil {
		canScale = CanScale
	}
	if req.Width <= 0 || req.Height <= 0 {
		return -1, ErrModeUnavailable
	}

	srcArea := req.Width * req.Height
	best := -1
	var bestScore score

	for i, c := range candidates {
		if c.Width <= 0 || c.Height <= 0 || c.PixelClockKHz <= 0 || c.Interlaced {
			continue
		}

		physW, physH := c.PhysWidthMM, c.PhysHeightMM
		switch c.Aspect {
		case Aspect4x3:
			physW, physH = 4, 3
		case Aspect16x9:
			physW, physH = 16, 9
		}

		fitW, fitH := FitDimensions(req.Width, req.Height, req.PixelAspect, c.Width, c.Height, physW, physH)

		// Even tiled 2D buffers have to be scalable on this mode.
		if !canScale(req.Width, req.Height, fitW, fitH, true, p, c.PixelClockKHz) {
			continue
		}

		var s score
		if c.Aspect == Aspect4x3 || c.Aspect == Aspect16x9 {
			s.cea = 1
		}
		if i == req.Current && req.AvoidModeChange {
			s.keep = 1
		}

		fitArea := fitW * fitH
		modeArea := c.Width * c.Height
		if fitArea > srcArea {
			s.fit = 16 * srcArea / fitArea
		} else if srcArea > 0 {
			s.fit = 16 * fitArea / srcArea
		}
		if modeArea > 0 {
			s.coverage = (16*fitArea + modeArea/2) / modeArea
		}

		refresh := c.RefreshHz
		if refresh == 0 {
			refresh = 1
		}
		// 59Hz-class modes are really 60Hz with a fractional clock.
		if refresh%6 == 5 {
			refresh++
		}
		want := req.RefreshHz
		if want <= 0 {
			want = 60
		}
		if refresh >= want {
			s.refreshAtLeast = 1
		}
		if refresh > want {
			s.refreshClose = 240 * want / refresh
		} else {
			s.refreshClose = 240 * refresh / want
		}

		if best < 0 || s.beats(bestScore) {
			best = i
			bestScore = s
		}
	}

	if best < 0 {
		return -1, ErrModeUnavailable
	}
	return best, nil
}
