// Package display models one output sink: its role, kind-specific data,
// active mode, and the transform mapping composed output onto it.
package display

import (
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/mode"
)

// Role distinguishes the always-present primary output from secondaries.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

func (r Role) String() string {
	if r == RolePrimary {
		return "primary"
	}
	return "secondary"
}

// Kind carries the data specific to a display subtype. Exactly one of the
// variant types below implements it.
type Kind interface {
	kindName() string
}

// LCD is a fixed-panel display with a single timing.
type LCD struct{}

func (LCD) kindName() string { return "lcd" }

// HDMI is a variable-mode sink with a catalog of supported timings.
type HDMI struct {
	// Modes is the catalog reported by the sink, in catalog order.
	Modes []mode.Candidate
	// Native is the timing the sink is driven with when no catalog entry
	// is usable.
	Native mode.Candidate
	// ActiveMode indexes Modes, or -1 while unconfigured.
	ActiveMode int
	// AvoidModeChange biases selection toward ActiveMode.
	AvoidModeChange bool
}

func (*HDMI) kindName() string { return "hdmi" }

// CaptureMode selects how a writeback sink receives the composition.
type CaptureMode int

const (
	// CaptureDirect taps the source output pipe as it scans out.
	CaptureDirect CaptureMode = iota
	// CaptureMem2Mem runs a separate memory-to-memory writeback pass.
	CaptureMem2Mem
)

// Virtual is a writeback-captured display (e.g. a wireless sink).
type Virtual struct {
	Width  int
	Height int
	Mode   CaptureMode
}

func (*Virtual) kindName() string { return "virtual" }

// KindName returns the kind's wire name ("lcd", "hdmi", "virtual").
func KindName(k Kind) string {
	if k == nil {
		return ""
	}
	return k.kindName()
}

// ModeInfo is the active timing of a display.
type ModeInfo struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	RefreshHz int `json:"refresh_hz"`
	DPIX      int `json:"dpi_x"`
	DPIY      int `json:"dpi_y"`
}

const inchToMM = 25.4

// DPI derives dots-per-inch from a resolution and physical size, falling
// back to def when the sink does not report its dimensions.
func DPI(pixels, mm, def int) int {
	if mm <= 0 {
		return def
	}
	return int(float64(pixels) * inchToMM / float64(mm))
}

// Display is one output sink. Created on attach, destroyed on detach; the
// transform and active mode are recomputed whenever geometry-relevant
// inputs change.
type Display struct {
	ID   int
	Name string
	Role Role
	Kind Kind
	// Manager is the hardware output this display's pipelines bind to.
	Manager int
	Config  ModeInfo
	// PhysWidthMM and PhysHeightMM are the sink's reported dimensions.
	PhysWidthMM  int
	PhysHeightMM int

	Transform geom.Transform
	Blanked   bool
	// MirrorOf is the ID of the display this one clones, or -1 when the
	// display composes independently.
	MirrorOf int

	// transformStale is set whenever a geometry-relevant input changed and
	// cleared by UpdateTransform.
	transformStale bool
	// viewport inputs, kept so the transform can be recomputed lazily.
	// region is the source-space rectangle this display shows; dst is
	// where it lands on the mode extent.
	region   geom.Rect
	rotation geom.Rotation
	hflip    bool
	dst      geom.Rect
}

// New creates a display with an identity viewport covering its mode.
func New(id int, role Role, kind Kind, cfg ModeInfo) *Display {
	d := &Display{
		ID:       id,
		Role:     role,
		Kind:     kind,
		Config:   cfg,
		MirrorOf: -1,
	}
	full := geom.Rect{W: cfg.Width, H: cfg.Height}
	d.SetViewport(full, geom.RotNone, false, full)
	return d
}

// SetViewport records how composed output is placed on this display: the
// source-space rectangle region, rotated by rot quarter turns, optionally
// mirrored, shown at dst on the mode extent. The transform matrix is
// recomputed on the next UpdateTransform.
func (d *Display) SetViewport(region geom.Rect, rot geom.Rotation, hflip bool, dst geom.Rect) {
	d.region = region
	d.rotation = rot
	d.hflip = hflip
	d.dst = dst
	d.transformStale = true
}

// TransformStale reports whether UpdateTransform needs to run before the
// next planning pass.
func (d *Display) TransformStale() bool { return d.transformStale }

// UpdateTransform recomputes the display transform from the stored viewport
// inputs. Scaling is set when any pipeline window must be run through the
// matrix: a rotation, a mirror, a source region that does not land
// one-to-one on the mode extent. Transform.Region keeps the source-space
// rectangle, which is what pipeline windows are clipped against.
func (d *Display) UpdateTransform() {
	sw, sh := d.region.W, d.region.H
	if d.rotation.Swapped() {
		sw, sh = sh, sw
	}

	d.Transform = geom.Transform{
		Rotation: d.rotation,
		HFlip:    d.hflip,
		Region:   d.region,
		Scaling: d.rotation != geom.RotNone || d.hflip ||
			sw != d.dst.W || sh != d.dst.H ||
			d.region.X != 0 || d.region.Y != 0 ||
			d.dst.X != 0 || d.dst.Y != 0,
		Matrix: geom.ComposeTransform(d.rotation, d.hflip, d.region, d.dst),
	}
	d.transformStale = false
}

// Mirroring reports whether this display clones another's plan.
func (d *Display) Mirroring() bool { return d.MirrorOf >= 0 }

// HDMIKind returns the HDMI variant data, or nil for other kinds.
func (d *Display) HDMIKind() *HDMI {
	h, _ := d.Kind.(*HDMI)
	return h
}

// VirtualKind returns the writeback variant data, or nil for other kinds.
func (d *Display) VirtualKind() *Virtual {
	v, _ := d.Kind.(*Virtual)
	return v
}
