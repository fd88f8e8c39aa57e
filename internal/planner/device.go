package planner

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/mode"
	"github.com/displaykit/hwcplan/internal/overlay"
)

// BlitPolicy selects how aggressively an external 2D blitter is used for
// composition, ahead of both hardware pipelines and the GPU fallback.
type BlitPolicy int

const (
	BlitDisabled BlitPolicy = iota
	// BlitDefault lets the blitter pick up the layers the pipelines could
	// not take, replacing the GPU fallback when it can.
	BlitDefault
	// BlitAll hands the whole frame to the blitter when it reports it can
	// render every layer.
	BlitAll
)

// Blitter reports whether the external 2D engine can composite the given
// layers by itself.
type Blitter func(layers []*layer.Layer) bool

// Frame is one planning input: per-display layer lists, bottom z first.
// A mirrored display's own list is ignored for geometry but still marked
// fully hardware-composited.
type Frame struct {
	Contents map[int][]*layer.Layer
}

// Options configures a Device.
type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	ScaleCheck mode.ScaleCheck
	BlitPolicy BlitPolicy
	Blitter    Blitter
	// FramebufferFormat is the format of the fallback-composition target.
	FramebufferFormat layer.PixelFormat
}

// Device owns the planning state: the display table, per-frame budgets,
// last-frame usage and the finished plans. One mutex guards all of it; the
// prepare and commit entry points and the hotplug mutators all take it.
type Device struct {
	mu sync.Mutex

	cfg        *config.Config
	log        *slog.Logger
	scaleCheck mode.ScaleCheck
	blitPolicy BlitPolicy
	blitter    Blitter
	fbFormat   layer.PixelFormat

	displays map[int]*display.Display
	plans    map[int]*Plan
	hist     overlay.FrameHistory
	budgets  overlay.Budgets

	// forceSoftware routes composition through the fallback layer for that
	// many upcoming frames; Commit counts it down.
	forceSoftware int

	onInvalidate func()
}

// NewDevice creates a Device with no displays attached.
func NewDevice(opts Options) *Device {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	fb := opts.FramebufferFormat
	if fb == "" {
		fb = layer.FormatBGRA8888
	}
	return &Device{
		cfg:        cfg,
		log:        log,
		scaleCheck: opts.ScaleCheck,
		blitPolicy: opts.BlitPolicy,
		blitter:    opts.Blitter,
		fbFormat:   fb,
		displays:   make(map[int]*display.Display),
		plans:      make(map[int]*Plan),
	}
}

// OnInvalidate registers the callback fired when the host should re-invoke
// planning. It is always called with the device lock released.
func (dev *Device) OnInvalidate(fn func()) {
	dev.mu.Lock()
	dev.onInvalidate = fn
	dev.mu.Unlock()
}

func (dev *Device) invalidate() {
	dev.mu.Lock()
	cb := dev.onInvalidate
	dev.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// AttachDisplay adds a display to the table and requests a re-plan.
func (dev *Device) AttachDisplay(d *display.Display) {
	dev.mu.Lock()
	dev.displays[d.ID] = d
	dev.mu.Unlock()
	dev.log.Info("display attached", "id", d.ID, "name", d.Name,
		"kind", display.KindName(d.Kind), "config", fmt.Sprintf("%dx%d", d.Config.Width, d.Config.Height))
	dev.invalidate()
}

// DetachDisplay removes a display. Its pipelines stay accounted to it for
// one more frame through the usage history, so they are disabled on the
// owning output before being handed to the other display.
func (dev *Device) DetachDisplay(id int) {
	dev.mu.Lock()
	delete(dev.displays, id)
	delete(dev.plans, id)
	dev.mu.Unlock()
	dev.log.Info("display detached", "id", id)
	dev.invalidate()
}

// SetBlanked blanks or unblanks a display and requests a re-plan.
func (dev *Device) SetBlanked(id int, blanked bool) {
	dev.mu.Lock()
	if d := dev.displays[id]; d != nil {
		d.Blanked = blanked
	}
	dev.mu.Unlock()
	dev.invalidate()
}

// SetMirror makes display id a clone of display srcID, or independent again
// when srcID is negative.
func (dev *Device) SetMirror(id, srcID int) {
	dev.mu.Lock()
	if d := dev.displays[id]; d != nil {
		d.MirrorOf = srcID
	}
	dev.mu.Unlock()
	dev.invalidate()
}

// ForceSoftware routes the next n frames through the fallback layer and
// requests a re-plan. Used by the idle path to let the panel self-refresh
// from a single buffer.
func (dev *Device) ForceSoftware(n int) {
	dev.mu.Lock()
	dev.forceSoftware = n
	dev.mu.Unlock()
	dev.invalidate()
}

func (dev *Device) primary() *display.Display {
	for _, d := range dev.displays {
		if d.Role == display.RolePrimary {
			return d
		}
	}
	return nil
}

func (dev *Device) secondary() *display.Display {
	var sec *display.Display
	for _, d := range dev.displays {
		if d.Role != display.RolePrimary && (sec == nil || d.ID < sec.ID) {
			sec = d
		}
	}
	return sec
}

// Prepare plans the frame: allocates budgets from last frame's usage,
// plans the primary, then plans or clones the secondary. The finished plans
// replace the previous ones atomically per display.
func (dev *Device) Prepare(frame Frame) (map[int]*Plan, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	primary := dev.primary()
	if primary == nil {
		return nil, fmt.Errorf("planner: no primary display attached")
	}
	sec := dev.secondary()

	for _, d := range dev.displays {
		if d.TransformStale() {
			d.UpdateTransform()
		}
	}

	mirroring := sec != nil && sec.MirrorOf == primary.ID
	capture := false
	if sec != nil {
		if v := sec.VirtualKind(); v != nil {
			if mirroring {
				v.Mode = decideCaptureMode(primary.Config, v)
			} else {
				v.Mode = display.CaptureMem2Mem
			}
			capture = mirroring && v.Mode == display.CaptureDirect
		}
	}

	primaryLayers := frame.Contents[primary.ID]
	stats := layer.Collect(primaryLayers)

	dev.budgets = overlay.Reserve(dev.cfg.Platform, dev.hist, overlay.Request{
		PrimaryScaling:   primary.Transform.Scaling,
		PrimaryProtected: stats.Protected,
		SecondaryPresent: sec != nil,
		Mirroring:        mirroring,
		SecondaryCapture: capture,
	})

	plans := make(map[int]*Plan, 2)
	pplan := dev.planDisplay(primary, primaryLayers, dev.budgets.Primary)
	plans[primary.ID] = pplan

	hist := overlay.FrameHistory{PrimaryUsed: pplan.UsedPipes}
	if sec != nil {
		var splan *Plan
		if mirroring {
			splan = dev.mirrorPlan(pplan, primary, sec, frame.Contents[sec.ID], dev.budgets.Secondary)
		} else {
			splan = dev.planDisplay(sec, frame.Contents[sec.ID], dev.budgets.Secondary)
		}
		plans[sec.ID] = splan
		hist.SecondaryUsed = splan.UsedPipes
	}

	dev.hist = hist
	dev.plans = plans
	return plans, nil
}

// Commit accounts for a posted frame: the force-software countdown ticks
// down, and secondaries whose budget could not be met while protected
// content or total starvation was involved raise a re-plan request. The
// invalidate callback fires with the lock released.
func (dev *Device) Commit() bool {
	dev.mu.Lock()
	inv := false
	for id, p := range dev.plans {
		d := dev.displays[id]
		if d == nil || d.Role == display.RolePrimary {
			continue
		}
		if p.Wanted > 0 && p.Available < p.Wanted && (p.Protected || p.Available == 0) {
			inv = true
		}
	}
	if dev.forceSoftware > 0 {
		dev.forceSoftware--
	}
	cb := dev.onInvalidate
	dev.mu.Unlock()

	if inv && cb != nil {
		cb()
	}
	return inv
}

// DisplayState is the serializable view of one display and its last plan.
type DisplayState struct {
	ID      int              `json:"id"`
	Name    string           `json:"name,omitempty"`
	Role    string           `json:"role"`
	Kind    string           `json:"kind"`
	Config  display.ModeInfo `json:"config"`
	Blanked bool             `json:"blanked,omitempty"`
	// MirrorOf is the cloned display's ID, or -1.
	MirrorOf int   `json:"mirror_of"`
	Plan     *Plan `json:"plan,omitempty"`
}

// Snapshot is the serializable view of the whole device, exposed over IPC.
type Snapshot struct {
	Displays      []DisplayState       `json:"displays"`
	History       overlay.FrameHistory `json:"history"`
	Budgets       overlay.Budgets      `json:"budgets"`
	ForceSoftware int                  `json:"force_software"`
}

// Snapshot captures the current device state for dump/status queries.
func (dev *Device) Snapshot() Snapshot {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	snap := Snapshot{
		History:       dev.hist,
		Budgets:       dev.budgets,
		ForceSoftware: dev.forceSoftware,
	}
	for _, d := range dev.displays {
		snap.Displays = append(snap.Displays, DisplayState{
			ID:       d.ID,
			Name:     d.Name,
			Role:     d.Role.String(),
			Kind:     display.KindName(d.Kind),
			Config:   d.Config,
			Blanked:  d.Blanked,
			MirrorOf: d.MirrorOf,
			Plan:     dev.plans[d.ID],
		})
	}
	sort.Slice(snap.Displays, func(i, j int) bool {
		return snap.Displays[i].ID < snap.Displays[j].ID
	})
	return snap
}

// decideCaptureMode picks how a writeback sink mirrors the source: tapping
// the scan-out directly when no rescale is needed, a separate
// memory-to-memory pass otherwise.
func decideCaptureMode(src display.ModeInfo, v *display.Virtual) display.CaptureMode {
	if v.Width == src.Width && v.Height == src.Height {
		return display.CaptureDirect
	}
	return display.CaptureMem2Mem
}
