package planner

import (
	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/mode"
)

// Admission is the per-frame state the eligibility decision depends on
// beyond the layer itself.
type Admission struct {
	// ForceSoftware routes everything through the fallback layer except
	// protected content and upscaled subsampled-chroma video, which the
	// software path cannot render.
	ForceSoftware bool
	// SwapRB is the frame-wide red/blue swap decision; with color-order
	// enforcement a layer must agree with it to be hardware-composited.
	SwapRB bool
	// VariableModeSink is set for HDMI-class outputs, which render RGB
	// order only.
	VariableModeSink bool
	// MemUsed and MemBudget track contiguous-memory admission.
	MemUsed   int
	MemBudget int
	// FallbackOpen is set once a software-fallback z-slot exists below the
	// current layer; a blended layer cannot be admitted above it.
	FallbackOpen bool
	// PixelClockKHz is the output's pixel clock, bounding downscale fetch.
	PixelClockKHz int
}

// CanUseHardware decides whether a single layer may ride a hardware
// pipeline this frame. Pure predicate: no side effects, no ordering state
// beyond what Admission carries.
func CanUseHardware(l *layer.Layer, beh config.Behavior, p config.Platform,
	check mode.ScaleCheck, adm Admission) bool {
	if l.Buffer == nil || l.Skip {
		return false
	}
	f := l.Buffer.Format
	if f.BytesPerPixel() == 0 {
		return false
	}

	// Only the tiled chroma format can be fetched rotated or mirrored.
	rot, mirror := l.Transform.RotationMirror()
	if (rot != geom.RotNone || mirror) && !f.Rotatable() {
		return false
	}

	if beh.NV12Only && !f.SubsampledChroma() {
		return false
	}

	// Color-order enforcement: a layer whose channel order disagrees with
	// the frame's swap decision would render with red and blue exchanged.
	rgbClass := !f.BGR() && !f.SubsampledChroma()
	if beh.RGBOrder {
		if adm.SwapRB && rgbClass {
			return false
		}
		if !adm.SwapRB && f.BGR() {
			return false
		}
	}
	if adm.VariableModeSink && f.BGR() {
		return false
	}

	if adm.ForceSoftware && !l.Protected && !l.UpscaledChroma(beh.UpscaledNV12Limit) {
		return false
	}

	if adm.MemUsed+l.Mem1DSize() > adm.MemBudget {
		return false
	}

	// The fallback layer must stay contiguous in z: once it is open, a
	// transparent layer above it cannot be pulled out of the stack.
	if adm.FallbackOpen && l.Blended() {
		return false
	}

	if check == nil {
		check = mode.CanScale
	}
	srcW, srcH := l.Crop.W, l.Crop.H
	if rot.Swapped() {
		srcW, srcH = srcH, srcW
	}
	return check(srcW, srcH, l.Window.W, l.Window.H, f.SubsampledChroma(), p, adm.PixelClockKHz)
}
