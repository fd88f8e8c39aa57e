// Package overlay partitions the fixed hardware-pipeline and memory budget
// across the active displays for one frame.
package overlay

import "github.com/displaykit/hwcplan/internal/config"

// FrameHistory couples two consecutive frames. Pipelines cannot be moved
// between displays atomically — a pipeline freed on one display only becomes
// available to the other after the disable lands — so each display's budget
// is reduced by what the other display used last frame. The orchestrator
// threads this value through Reserve and updates it after planning.
type FrameHistory struct {
	// PrimaryUsed and SecondaryUsed are the hardware pipelines each display
	// consumed in the previous frame.
	PrimaryUsed   int `json:"primary_used"`
	SecondaryUsed int `json:"secondary_used"`
}

// Budget is one display's share of the pipeline and memory resources.
type Budget struct {
	// Wanted is the pipeline count this display should converge to.
	Wanted int `json:"wanted"`
	// Available is what it may actually use this frame.
	Available int `json:"available"`
	// Scaling is the subset of Available that can scale.
	Scaling int `json:"scaling"`
	// BaseIndex is the first hardware pipeline index this display assigns.
	BaseIndex int `json:"base_index"`
	// MemorySlotBytes is the display's slice of the contiguous budget.
	MemorySlotBytes int `json:"memory_slot_bytes"`
}

// Request describes the frame being budgeted.
type Request struct {
	// PrimaryScaling is set when the primary's buffer resolution differs
	// from its panel resolution, which makes the non-scaling pipeline class
	// unusable.
	PrimaryScaling bool
	// PrimaryProtected is the number of protected layers on the primary.
	PrimaryProtected int
	// SecondaryPresent is set when a secondary display is attached.
	SecondaryPresent bool
	// Mirroring is set when the secondary clones the primary's plan.
	Mirroring bool
	// SecondaryCapture is set when the secondary is a writeback capture
	// sink, which consumes no pipelines of its own.
	SecondaryCapture bool
}

// Budgets is the per-frame reservation for both displays.
type Budgets struct {
	Primary   Budget `json:"primary"`
	Secondary Budget `json:"secondary"`
}

// Reserve splits the platform's pipelines and memory between the displays.
// The returned budgets honor the previous frame's usage on the opposite
// display, guarantee the primary one pipeline for the fallback layer plus
// one per protected layer, and clamp the primary to what the secondary can
// clone when mirroring.
func Reserve(p config.Platform, hist FrameHistory, req Request) Budgets {
	baseIndex := 0
	maxOverlays := p.MaxPipelines
	nonScaling := p.NonScalingPipelines

	// The non-scaling class is reserved for the unscaled fast path. When the
	// primary scales, skip past it.
	if req.PrimaryScaling {
		baseIndex = nonScaling
		maxOverlays -= nonScaling
		nonScaling = 0
	}

	maxPrimary := maxOverlays - hist.SecondaryUsed
	maxSecondary := maxOverlays - hist.PrimaryUsed

	var b Budgets
	b.Primary = Budget{
		Wanted:          maxOverlays,
		Available:       maxPrimary,
		Scaling:         maxPrimary - nonScaling,
		BaseIndex:       baseIndex,
		MemorySlotBytes: p.MemorySlotBytes,
	}

	// Halve the memory slot while a second display is consuming it, either
	// this frame or still draining from the last one.
	if hist.SecondaryUsed > 0 || (req.SecondaryPresent && !req.Mirroring) {
		b.Primary.MemorySlotBytes /= 2
	}

	if !req.SecondaryPresent || req.SecondaryCapture {
		return b
	}

	// One pipeline for the always-present fallback plus one per protected
	// layer, capped at the total.
	minPrimary := min(1+req.PrimaryProtected, maxOverlays)

	b.Primary.Wanted = max(maxOverlays/2, minPrimary)
	b.Primary.Available = min(maxPrimary, b.Primary.Wanted)

	b.Secondary = Budget{
		Wanted:          maxOverlays - b.Primary.Wanted,
		MemorySlotBytes: p.MemorySlotBytes - b.Primary.MemorySlotBytes,
	}
	b.Secondary.Available = min(maxSecondary, b.Secondary.Wanted)
	b.Secondary.Scaling = b.Secondary.Available
	b.Secondary.BaseIndex = p.MaxPipelines - b.Secondary.Available

	// When mirroring, every primary pipeline must be clonable to the
	// secondary, so the primary cannot outgrow the secondary's budget —
	// but it never drops below its guaranteed minimum, even if that means
	// some pipelines will not be cloned.
	if req.Mirroring && b.Secondary.Available > 0 && b.Primary.Available > b.Secondary.Available {
		b.Primary.Available = max(minPrimary, b.Secondary.Available)
	}

	return b
}
