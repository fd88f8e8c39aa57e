// Package planner turns per-display layer lists into composition plans:
// which layers ride a hardware pipeline, which fall back to software, and
// how every pipeline is configured for the frame.
package planner

import (
	"errors"
	"fmt"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/layer"
)

// ErrBudgetExceeded reports that a frame ran out of pipelines or contiguous
// memory. It is recovered locally by software fallback, never fatal.
var ErrBudgetExceeded = errors.New("planner: overlay budget exceeded")

// Addressing says how an assignment's Buffer field is to be resolved by the
// committer.
type Addressing string

const (
	// AddrLayer indexes the plan's buffer table (one slot per
	// hardware-composited layer plus one for the fallback output).
	AddrLayer Addressing = "layer"
	// AddrClone indexes the source display's assignments; the pipeline
	// scans out the same buffer as the referenced one.
	AddrClone Addressing = "clone"
)

// Assignment is one configured hardware pipeline within a plan.
type Assignment struct {
	// Pipe is the hardware pipeline index.
	Pipe int `json:"pipe"`
	// Manager is the output the pipeline feeds.
	Manager int `json:"manager"`
	// Z is the stacking order within the plan, 0 at the bottom.
	Z int `json:"z"`
	// Enabled is cleared instead of removing the assignment when display
	// clipping leaves nothing visible, preserving index bookkeeping.
	Enabled bool `json:"enabled"`

	Format layer.PixelFormat `json:"format"`
	Width  int               `json:"width"`
	Height int               `json:"height"`

	Crop     geom.Rect     `json:"crop"`
	Window   geom.Rect     `json:"window"`
	Rotation geom.Rotation `json:"rotation"`
	Mirror   bool          `json:"mirror"`

	Blended bool `json:"blended"`
	PreMult bool `json:"premult"`

	Addressing Addressing `json:"addressing"`
	Buffer     int        `json:"buffer"`

	// Writeback entries capture the manager output instead of feeding it.
	Writeback   bool                `json:"writeback,omitempty"`
	CaptureMode display.CaptureMode `json:"capture_mode,omitempty"`
}

// Plan is the finished composition for one display for one frame.
type Plan struct {
	DisplayID   int          `json:"display_id"`
	Assignments []Assignment `json:"assignments"`

	// UsedPipes is the pipeline count this display consumed, fed back as
	// next frame's history. For a mirrored display it counts clones only.
	UsedPipes int `json:"used_pipes"`

	// Fallback is set when assignment slot 0 carries the software-composed
	// output of the layers not admitted to hardware.
	Fallback  bool `json:"fallback"`
	FallbackZ int  `json:"fallback_z,omitempty"`

	// SwapRB asks the committer to swap the red and blue channels at the
	// output. Never set for variable-mode sinks.
	SwapRB bool `json:"swap_rb,omitempty"`

	// Mirrored marks the plan as a geometric clone of another display's.
	Mirrored bool `json:"mirrored,omitempty"`

	// Buffers is the size of the plan's buffer table.
	Buffers int `json:"buffers"`

	// Wanted and Available record the budget the plan was made under, for
	// the commit-time re-evaluation decision.
	Wanted    int `json:"wanted"`
	Available int `json:"available"`
	// Protected is set when the display carried protected content, which
	// cannot run in software.
	Protected bool `json:"protected,omitempty"`
}

// Validate checks that z-orders form a permutation of 0..UsedPipes-1 and
// that no pipeline index repeats. A violation is a planner defect: the frame
// is still committed best-effort, so this returns an error for the caller
// to log rather than failing.
func (p *Plan) Validate() error {
	n := 0
	for _, a := range p.Assignments {
		if !a.Writeback {
			n++
		}
	}
	var zSeen, pipeSeen uint32
	for _, a := range p.Assignments {
		if a.Writeback {
			continue
		}
		if a.Z < 0 || a.Z >= n {
			return fmt.Errorf("display %d: z-order %d out of range", p.DisplayID, a.Z)
		}
		if zSeen&(1<<uint(a.Z)) != 0 {
			return fmt.Errorf("display %d: z-order %d used twice", p.DisplayID, a.Z)
		}
		if a.Pipe >= 0 && a.Pipe < 32 {
			if pipeSeen&(1<<uint(a.Pipe)) != 0 {
				return fmt.Errorf("display %d: pipeline %d used twice", p.DisplayID, a.Pipe)
			}
			pipeSeen |= 1 << uint(a.Pipe)
		}
		zSeen |= 1 << uint(a.Z)
	}
	return nil
}

// assignmentForLayer builds the pipeline configuration for one layer at the
// given stacking position, before any display transform is applied.
func assignmentForLayer(l *layer.Layer, z, manager int) Assignment {
	rot, mirror := l.Transform.RotationMirror()
	return Assignment{
		Manager:    manager,
		Z:          z,
		Enabled:    true,
		Format:     l.Buffer.Format,
		Width:      l.Buffer.Width,
		Height:     l.Buffer.Height,
		Crop:       l.Crop,
		Window:     l.Window,
		Rotation:   rot,
		Mirror:     mirror,
		Blended:    l.Blended(),
		PreMult:    l.Blending == layer.BlendPremult,
		Addressing: AddrLayer,
	}
}

// fallbackAssignment builds the full-display pipeline that carries the
// software-composed output of every layer not admitted to hardware.
func fallbackAssignment(d *display.Display, pipe, z int, format layer.PixelFormat) Assignment {
	full := geom.Rect{W: d.Config.Width, H: d.Config.Height}
	return Assignment{
		Pipe:       pipe,
		Manager:    d.Manager,
		Z:          z,
		Enabled:    true,
		Format:     format,
		Width:      d.Config.Width,
		Height:     d.Config.Height,
		Crop:       full,
		Window:     full,
		Blended:    true,
		PreMult:    true,
		Addressing: AddrLayer,
	}
}

// adjustToDisplay clips an assignment against the display's visible region
// and runs its window through the display transform. Fully clipped entries
// are disabled in place.
func adjustToDisplay(a *Assignment, d *display.Display) {
	win, crop, err := geom.ClipToVisibleRegion(a.Window, a.Crop, a.Rotation, a.Mirror, d.Transform.Region)
	if err != nil {
		a.Enabled = false
		return
	}
	a.Window = d.Transform.Matrix.ApplyToRect(win)
	a.Crop = crop
	a.Rotation, a.Mirror = geom.CombineRotationMirror(a.Rotation, a.Mirror,
		d.Transform.Rotation, d.Transform.HFlip)
}
