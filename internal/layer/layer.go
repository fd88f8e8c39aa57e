package layer

import (
	"image"

	"github.com/displaykit/hwcplan/internal/geom"
)

// PixelFormat identifies the pixel layout of a layer's backing buffer.
type PixelFormat string

const (
	FormatRGBA8888 PixelFormat = "rgba8888"
	FormatRGBX8888 PixelFormat = "rgbx8888"
	FormatBGRA8888 PixelFormat = "bgra8888"
	FormatBGRX8888 PixelFormat = "bgrx8888"
	FormatRGB565   PixelFormat = "rgb565"
	FormatNV12     PixelFormat = "nv12"
)

// BytesPerPixel returns the per-pixel footprint used for memory-budget
// admission. NV12 reports its luma plane size; the chroma plane is folded in
// by Mem1DSize.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB565:
		return 2
	case FormatNV12:
		return 1
	default:
		return 4
	}
}

// BGR reports whether the format stores channels in blue-first order. Some
// output paths cannot swap the color order in hardware.
func (f PixelFormat) BGR() bool {
	return f == FormatBGRA8888 || f == FormatBGRX8888
}

// SubsampledChroma reports whether the format carries chroma at reduced
// resolution. These buffers live in tiled 2D space, which makes them the
// only rotatable format class and exempts them from the 1D memory budget.
func (f PixelFormat) SubsampledChroma() bool {
	return f == FormatNV12
}

// Rotatable reports whether hardware can rotate buffers of this format.
func (f PixelFormat) Rotatable() bool {
	return f.SubsampledChroma()
}

// Blending describes how a layer combines with the pixels beneath it.
type Blending string

const (
	BlendNone     Blending = "none"
	BlendPremult  Blending = "premultiplied"
	BlendCoverage Blending = "coverage"
)

// TransformFlags carries the caller-supplied flip/rotate bits for a layer.
type TransformFlags uint8

const (
	FlipH TransformFlags = 1 << iota
	FlipV
	Rot90Flag
)

// RotationMirror reduces the flag combination to a quarter-turn rotation and
// a single horizontal mirror, folding FlipV into a half turn plus mirror.
func (f TransformFlags) RotationMirror() (geom.Rotation, bool) {
	rot := geom.RotNone
	mirror := f&FlipH != 0
	if f&FlipV != 0 {
		rot = geom.Rot180
		mirror = !mirror
	}
	if f&Rot90Flag != 0 {
		if mirror {
			rot = (rot - 1) & 3
		} else {
			rot = (rot + 1) & 3
		}
	}
	return rot, mirror
}

// Buffer is the backing store reference for a layer. Pixels is optional and
// only consulted by the software committer; the planner cares about the
// format and dimensions alone.
type Buffer struct {
	Format PixelFormat
	Width  int
	Height int
	Pixels image.Image
}

// CompositionType records the planner's verdict for a layer.
type CompositionType int

const (
	CompositionUndecided CompositionType = iota
	// CompositionHardware: the layer is bound to a hardware pipeline.
	CompositionHardware
	// CompositionSoftware: the layer is merged into the fallback layer.
	CompositionSoftware
)

// Hint bits annotated onto hardware-composited layers for the caller.
type Hint uint8

const (
	// HintTripleBuffer distinguishes true overlays from blits.
	HintTripleBuffer Hint = 1 << iota
	// HintClearFB asks the software compositor to clear the framebuffer
	// region under an opaque hardware layer.
	HintClearFB
)

// Layer is one visual element for one frame. The caller owns it for the
// prepare/commit cycle; the planner only writes Composition and Hints.
type Layer struct {
	Name      string
	Buffer    *Buffer
	Crop      geom.Rect
	Window    geom.Rect
	Transform TransformFlags
	Blending  Blending
	Protected bool
	Skip      bool

	Composition CompositionType
	Hints       Hint
}

// Blended reports whether the layer needs blending with what lies below it.
func (l *Layer) Blended() bool {
	return l.Blending == BlendPremult || l.Blending == BlendCoverage
}

// Scaled reports whether the window size differs from the crop size along
// either axis, taking the layer's own rotation into account.
func (l *Layer) Scaled() bool {
	cw, ch := l.Crop.W, l.Crop.H
	if rot, _ := l.Transform.RotationMirror(); rot.Swapped() {
		cw, ch = ch, cw
	}
	return cw != l.Window.W || ch != l.Window.H
}

// UpscaledChroma reports whether a subsampled-chroma layer is being enlarged
// beyond limit in either direction. Such layers look noticeably worse when
// composited in software, so they keep their hardware pipeline even under
// forced software composition.
func (l *Layer) UpscaledChroma(limit float64) bool {
	if l.Buffer == nil || !l.Buffer.Format.SubsampledChroma() {
		return false
	}
	cw, ch := l.Crop.W, l.Crop.H
	if rot, _ := l.Transform.RotationMirror(); rot.Swapped() {
		cw, ch = ch, cw
	}
	if cw <= 0 || ch <= 0 {
		return false
	}
	return float64(l.Window.W) > float64(cw)*limit || float64(l.Window.H) > float64(ch)*limit
}

// Mem1DSize returns the layer's claim against the shared contiguous memory
// budget. Tiled 2D buffers (subsampled chroma) are allocated elsewhere and
// cost nothing here.
func (l *Layer) Mem1DSize() int {
	if l.Buffer == nil || l.Buffer.Format.SubsampledChroma() {
		return 0
	}
	return l.Buffer.Width * l.Buffer.Height * l.Buffer.Format.BytesPerPixel()
}

// Stats summarizes one display's layer list for budget reservation.
type Stats struct {
	Count     int
	Protected int
	BGR       int
	RGB       int
	Chroma    int
	Skipped   int
}

// Collect gathers the per-frame statistics the allocator and planner need.
func Collect(layers []*Layer) Stats {
	var s Stats
	for _, l := range layers {
		s.Count++
		if l.Skip {
			s.Skipped++
			continue
		}
		if l.Protected {
			s.Protected++
		}
		if l.Buffer != nil {
			switch {
			case l.Buffer.Format.SubsampledChroma():
				s.Chroma++
			case l.Buffer.Format.BGR():
				s.BGR++
			default:
				s.RGB++
			}
		}
	}
	return s
}
