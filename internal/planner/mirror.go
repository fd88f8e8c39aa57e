package planner

import (
	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/overlay"
)

// mirrorPlan clones the source display's finished assignments for a
// mirroring display. Clone pipelines are allocated from the top of the
// index space downward so they never collide with the source's while both
// are active; z-orders are rebased above the source's to stay distinct in
// the shared stacking space. When the reserved range runs out the remaining
// pipelines are simply not cloned, which is reported but not fatal.
func (dev *Device) mirrorPlan(src *Plan, primary, d *display.Display, own []*layer.Layer, b overlay.Budget) *Plan {
	plan := &Plan{
		DisplayID: d.ID,
		Mirrored:  true,
		Wanted:    b.Wanted,
		Available: b.Available,
		Protected: src.Protected,
	}

	// The clone is a pure visual copy: nothing on the mirrored display is
	// ever composed in software.
	for _, l := range own {
		l.Composition = layer.CompositionHardware
	}

	if primary.Blanked {
		return plan
	}

	// A direct-capture writeback sink taps the source scan-out; there is
	// nothing to clone.
	if v := d.VirtualKind(); v != nil && v.Mode == display.CaptureDirect {
		dev.appendWriteback(plan, d, v, primary.Manager)
		return plan
	}

	if d.Blanked || hdmiUnconfigured(d) {
		return plan
	}

	max := dev.cfg.Platform.MaxPipelines
	clones := 0
	for ix := 0; ix < src.UsedPipes; ix++ {
		if src.UsedPipes+clones >= max {
			dev.log.Error("cannot clone pipeline: index space exhausted",
				"display", d.ID, "pipeline", ix, "in_use", src.UsedPipes+clones)
			break
		}

		o := src.Assignments[ix]
		o.Pipe = max - 1 - clones
		o.Manager = d.Manager
		// The clone scans out the very buffer the source pipeline shows.
		o.Addressing = AddrClone
		o.Buffer = ix
		o.Z += src.UsedPipes

		adjustToDisplay(&o, d)

		plan.Assignments = append(plan.Assignments, o)
		clones++
	}
	plan.UsedPipes = clones

	if v := d.VirtualKind(); v != nil && v.Mode == display.CaptureMem2Mem {
		dev.appendWriteback(plan, d, v, d.Manager)
	}
	return plan
}
