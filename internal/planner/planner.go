package planner

import (
	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/overlay"
)

func hdmiUnconfigured(d *display.Display) bool {
	h := d.HDMIKind()
	return h != nil && h.ActiveMode < 0
}

// pixelClock returns the active mode's pixel clock for downscale-rate
// admission, or 0 when the sink has a fixed timing.
func pixelClock(d *display.Display) int {
	h := d.HDMIKind()
	if h == nil || h.ActiveMode < 0 || h.ActiveMode >= len(h.Modes) {
		return 0
	}
	return h.Modes[h.ActiveMode].PixelClockKHz
}

// allHardware reports whether every layer is independently eligible for a
// pipeline and the whole list fits the display's budget, which is the
// condition for skipping the fallback layer entirely.
func (dev *Device) allHardware(d *display.Display, layers []*layer.Layer, stats layer.Stats, b overlay.Budget) bool {
	if stats.Count == 0 || stats.Count > b.Available || stats.Skipped > 0 {
		return false
	}
	adm := Admission{
		ForceSoftware:    dev.forceSoftware > 0,
		SwapRB:           stats.BGR != 0,
		VariableModeSink: d.HDMIKind() != nil,
		MemBudget:        b.MemorySlotBytes,
		PixelClockKHz:    pixelClock(d),
	}
	mem := 0
	for _, l := range layers {
		adm.MemUsed = mem
		if !CanUseHardware(l, dev.cfg.Behavior, dev.cfg.Platform, dev.scaleCheck, adm) {
			return false
		}
		mem += l.Mem1DSize()
	}
	return true
}

// planDisplay runs the per-display planning pass: decide whether a fallback
// layer is needed, walk the layers in z-order assigning pipelines, keep the
// non-scaling pipeline unscaled, keep the fallback z-slot the lowest among
// the software layers, then apply the display transform and validate.
func (dev *Device) planDisplay(d *display.Display, layers []*layer.Layer, b overlay.Budget) *Plan {
	stats := layer.Collect(layers)
	plan := &Plan{
		DisplayID: d.ID,
		Wanted:    b.Wanted,
		Available: b.Available,
		Protected: stats.Protected > 0,
	}

	blitAll := dev.blitPolicy == BlitAll && dev.blitter != nil && dev.blitter(layers)

	useFallback := false
	swapRB := false
	switch {
	case blitAll:
		for _, l := range layers {
			l.Composition = layer.CompositionHardware
		}
	case dev.allHardware(d, layers, stats, b):
		swapRB = stats.BGR != 0
	default:
		useFallback = true
		swapRB = dev.fbFormat.BGR()
	}
	// The variable-mode output path cannot swap red and blue.
	if d.HDMIKind() != nil {
		swapRB = false
	}

	needsFB := useFallback || blitAll

	asgn := make([]Assignment, 0, b.Available)
	z := 0
	fbZ := -1
	if blitAll {
		// The whole frame is one blitted layer at the bottom.
		fbZ = 0
		z = 1
	}
	scaledGfx := false
	ovlIx := b.BaseIndex
	memUsed := 0
	buffers := 0
	if needsFB {
		// Slot 0 is reserved for the fallback layer; it is configured last,
		// once its z-slot is known.
		asgn = append(asgn, Assignment{})
		ovlIx++
	}

	adm := Admission{
		ForceSoftware:    dev.forceSoftware > 0,
		SwapRB:           swapRB,
		VariableModeSink: d.HDMIKind() != nil,
		MemBudget:        b.MemorySlotBytes,
		PixelClockKHz:    pixelClock(d),
	}

	for _, l := range layers {
		if blitAll {
			break
		}
		adm.MemUsed = memUsed
		adm.FallbackOpen = fbZ >= 0

		if len(asgn) < b.Available &&
			CanUseHardware(l, dev.cfg.Behavior, dev.cfg.Platform, dev.scaleCheck, adm) {
			memUsed += l.Mem1DSize()
			l.Composition = layer.CompositionHardware
			l.Hints |= layer.HintTripleBuffer
			// The fallback pass can skip the regions opaque pipelines cover.
			if useFallback && !l.Blended() {
				l.Hints |= layer.HintClearFB
			}

			a := assignmentForLayer(l, z, d.Manager)
			a.Pipe = ovlIx
			a.Buffer = buffers

			// The lowest pipeline cannot scale. If a scaled or subsampled
			// layer landed on it, trade indices with the first later layer
			// that does not need scaling.
			if a.Pipe == 0 {
				scaledGfx = l.Scaled() || l.Buffer.Format.SubsampledChroma()
			} else if scaledGfx && !l.Scaled() && !l.Buffer.Format.SubsampledChroma() {
				a.Pipe = asgn[0].Pipe
				asgn[0].Pipe = ovlIx
				scaledGfx = false
			}

			asgn = append(asgn, a)
			buffers++
			ovlIx++
			z++
		} else if useFallback {
			l.Composition = layer.CompositionSoftware
			if fbZ < 0 {
				fbZ = z
				z++
			} else {
				// Keep the fallback slot the lowest among the software
				// layers by floating it up past the pipelines assigned
				// since it was opened.
				for fbZ < z-1 {
					asgn[1+fbZ].Z--
					fbZ++
				}
			}
		} else {
			l.Composition = layer.CompositionSoftware
		}
	}

	// A scaled layer left on the non-scaling pipeline moves to a free
	// scaling-capable one, or to the topmost index.
	if scaledGfx {
		if ovlIx < b.Available {
			asgn[0].Pipe = ovlIx
		} else {
			asgn[0].Pipe = dev.cfg.Platform.MaxPipelines - 1
		}
	}

	// With the default policy the blitter takes over the leftover layers
	// when it can render them, replacing the GPU pass; the fallback
	// pipeline still scans out its output.
	if dev.blitPolicy == BlitDefault && useFallback &&
		dev.blitter != nil && dev.blitter(layers) {
		useFallback = false
	}

	if needsFB {
		if fbZ < 0 {
			if stats.Count > 0 {
				dev.log.Error("no z-slot was opened for the fallback layer",
					"display", d.ID, "layers", stats.Count)
			}
			fbZ = z
			z++
		}
		fb := fallbackAssignment(d, b.BaseIndex, fbZ, dev.fbFormat)
		fb.Buffer = buffers
		buffers++
		asgn[0] = fb
	}

	plan.Assignments = asgn
	plan.UsedPipes = len(asgn)
	plan.Fallback = needsFB
	if needsFB {
		plan.FallbackZ = fbZ
	}
	plan.SwapRB = swapRB
	plan.Buffers = buffers

	if d.Transform.Scaling {
		for i := range asgn {
			adjustToDisplay(&asgn[i], d)
		}
	}

	if z != len(asgn) {
		dev.log.Error("z-slot count does not match assignments",
			"display", d.ID, "z", z, "assignments", len(asgn))
	}
	if err := plan.Validate(); err != nil {
		dev.log.Error("invariant violation", "err", err)
	}

	if v := d.VirtualKind(); v != nil {
		dev.appendWriteback(plan, d, v, d.Manager)
	}

	// A blanked or unconfigured display keeps its bookkeeping but scans
	// out nothing.
	if d.Blanked || hdmiUnconfigured(d) {
		plan.Assignments = nil
	}
	return plan
}

// appendWriteback adds the capture entry feeding a writeback sink from the
// given source output.
func (dev *Device) appendWriteback(p *Plan, d *display.Display, v *display.Virtual, srcManager int) {
	if d.Blanked {
		return
	}
	wb := Assignment{
		// The writeback pipeline sits past the scan-out set.
		Pipe:        dev.cfg.Platform.MaxPipelines,
		Manager:     srcManager,
		Enabled:     true,
		Format:      layer.FormatNV12,
		Width:       v.Width,
		Height:      v.Height,
		Crop:        geom.Rect{W: d.Config.Width, H: d.Config.Height},
		Window:      geom.Rect{W: v.Width, H: v.Height},
		Addressing:  AddrLayer,
		Buffer:      p.Buffers,
		Writeback:   true,
		CaptureMode: v.Mode,
	}
	if v.Mode == display.CaptureMem2Mem {
		// The scan-out pipelines already scaled; capture one-to-one.
		wb.Crop = wb.Window
	}
	p.Buffers++
	p.Assignments = append(p.Assignments, wb)
}
