package planner

import (
	"testing"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/mode"
)

func attachedMirror(dev *Device, primary *display.Display) *display.Display {
	sec := display.New(1, display.RoleSecondary, &display.HDMI{
		Modes:      []mode.Candidate{{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 148500}},
		ActiveMode: 0,
	}, display.ModeInfo{Width: 1920, Height: 1080})
	sec.MirrorOf = primary.ID
	sec.Manager = 1
	dev.displays[sec.ID] = sec
	return sec
}

func TestMirrorClonesWithOwnRegion(t *testing.T) {
	dev := newTestDevice()
	primary := attachedPrimary(dev, 1280, 720)
	sec := attachedMirror(dev, primary)
	// The secondary shows only the left half of the primary surface,
	// stretched over its whole mode.
	sec.SetViewport(geom.Rect{W: 640, H: 720}, geom.RotNone, false, geom.Rect{W: 1920, H: 1080})

	full := opaqueLayer("full", 1280, 720)
	right := opaqueLayer("right", 640, 720)
	right.Window = geom.Rect{X: 640, Y: 0, W: 640, H: 720}

	plans, err := dev.Prepare(Frame{Contents: map[int][]*layer.Layer{
		0: {full, right},
	}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	p, s := plans[0], plans[1]

	if p.UsedPipes != 2 {
		t.Fatalf("primary UsedPipes = %d, want 2", p.UsedPipes)
	}
	if !s.Mirrored || s.UsedPipes != 2 {
		t.Fatalf("secondary mirrored=%v UsedPipes=%d, want mirrored with 2 clones", s.Mirrored, s.UsedPipes)
	}

	// Clones take indices from the top of the pipe space downward and
	// z-orders above the source's.
	if s.Assignments[0].Pipe != 3 || s.Assignments[1].Pipe != 2 {
		t.Errorf("clone pipes = %d,%d, want 3,2", s.Assignments[0].Pipe, s.Assignments[1].Pipe)
	}
	if s.Assignments[0].Z != 2 || s.Assignments[1].Z != 3 {
		t.Errorf("clone z = %d,%d, want 2,3", s.Assignments[0].Z, s.Assignments[1].Z)
	}
	for i, a := range s.Assignments {
		if a.Addressing != AddrClone || a.Buffer != i || a.Manager != 1 {
			t.Errorf("clone %d addressing=%v buffer=%d manager=%d", i, a.Addressing, a.Buffer, a.Manager)
		}
	}

	// The full-surface clone is clipped to the mirrored region: crop cut
	// to the left half, window stretched over the secondary's mode.
	c0 := s.Assignments[0]
	if !c0.Enabled {
		t.Fatal("visible clone disabled")
	}
	if want := (geom.Rect{W: 640, H: 720}); c0.Crop != want {
		t.Errorf("clone crop = %v, want %v", c0.Crop, want)
	}
	if want := (geom.Rect{W: 1920, H: 1080}); c0.Window != want {
		t.Errorf("clone window = %v, want %v", c0.Window, want)
	}

	// The right-half layer lies outside the mirrored region: the clone is
	// disabled, not removed.
	if s.Assignments[1].Enabled {
		t.Error("out-of-region clone left enabled")
	}

	if dev.hist.SecondaryUsed != 2 {
		t.Errorf("history SecondaryUsed = %d, want 2", dev.hist.SecondaryUsed)
	}
}

func TestMirrorIndexSpaceExhaustion(t *testing.T) {
	dev := newTestDevice()
	primary := attachedPrimary(dev, 1280, 720)
	sec := attachedMirror(dev, primary)
	sec.SetViewport(geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1920, H: 1080})

	// Two protected layers lift the primary's guaranteed minimum to 3, so
	// only one top-of-range pipeline is left for cloning.
	var layers []*layer.Layer
	for i := 0; i < 3; i++ {
		l := opaqueLayer("v", 1280, 720)
		if i < 2 {
			l.Buffer.Format = layer.FormatNV12
			l.Protected = true
		}
		layers = append(layers, l)
	}

	plans, err := dev.Prepare(Frame{Contents: map[int][]*layer.Layer{0: layers}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	p, s := plans[0], plans[1]

	if p.UsedPipes != 3 {
		t.Fatalf("primary UsedPipes = %d, want 3", p.UsedPipes)
	}
	// 3 source pipelines + 1 clone fills the 4-pipe space; further clones
	// are dropped, not fatal.
	if s.UsedPipes != 1 || len(s.Assignments) != 1 {
		t.Fatalf("secondary UsedPipes = %d (%d assignments), want 1 clone",
			s.UsedPipes, len(s.Assignments))
	}
	if s.Assignments[0].Pipe != 3 {
		t.Errorf("clone pipe = %d, want 3", s.Assignments[0].Pipe)
	}
}

func TestMirrorMarksOwnLayersHardware(t *testing.T) {
	dev := newTestDevice()
	primary := attachedPrimary(dev, 1280, 720)
	sec := attachedMirror(dev, primary)
	sec.SetViewport(geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1920, H: 1080})

	own := opaqueLayer("sec-own", 64, 64)
	_, err := dev.Prepare(Frame{Contents: map[int][]*layer.Layer{
		0: {opaqueLayer("a", 1280, 720)},
		1: {own},
	}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if own.Composition != layer.CompositionHardware {
		t.Errorf("mirrored display's own layer composition = %v, want hardware", own.Composition)
	}
}

func TestMirrorBlankedPrimary(t *testing.T) {
	dev := newTestDevice()
	primary := attachedPrimary(dev, 1280, 720)
	primary.Blanked = true
	sec := attachedMirror(dev, primary)
	sec.SetViewport(geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1920, H: 1080})

	plans, err := dev.Prepare(Frame{Contents: map[int][]*layer.Layer{
		0: {opaqueLayer("a", 1280, 720)},
	}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if n := len(plans[1].Assignments); n != 0 {
		t.Errorf("blanked source produced %d clones", n)
	}
}

func TestVirtualMirrorCapture(t *testing.T) {
	t.Run("direct when resolutions match", func(t *testing.T) {
		dev := newTestDevice()
		primary := attachedPrimary(dev, 1280, 720)
		v := &display.Virtual{Width: 1280, Height: 720}
		sec := display.New(1, display.RoleSecondary, v, display.ModeInfo{Width: 1280, Height: 720})
		sec.MirrorOf = primary.ID
		sec.Manager = 1
		dev.displays[1] = sec

		plans, err := dev.Prepare(Frame{Contents: map[int][]*layer.Layer{
			0: {opaqueLayer("a", 1280, 720)},
		}})
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		s := plans[1]
		if v.Mode != display.CaptureDirect {
			t.Fatalf("capture mode = %v, want direct", v.Mode)
		}
		// Direct capture taps the source scan-out: one writeback entry,
		// no clones.
		if len(s.Assignments) != 1 || !s.Assignments[0].Writeback {
			t.Fatalf("assignments = %+v, want a single writeback entry", s.Assignments)
		}
		if s.Assignments[0].Manager != primary.Manager {
			t.Errorf("writeback manager = %d, want source manager %d",
				s.Assignments[0].Manager, primary.Manager)
		}
	})

	t.Run("mem2mem when rescaling", func(t *testing.T) {
		dev := newTestDevice()
		primary := attachedPrimary(dev, 1280, 720)
		v := &display.Virtual{Width: 1920, Height: 1080}
		sec := display.New(1, display.RoleSecondary, v, display.ModeInfo{Width: 1920, Height: 1080})
		sec.MirrorOf = primary.ID
		sec.Manager = 1
		sec.SetViewport(geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1920, H: 1080})
		dev.displays[1] = sec

		plans, err := dev.Prepare(Frame{Contents: map[int][]*layer.Layer{
			0: {opaqueLayer("a", 1280, 720)},
		}})
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		s := plans[1]
		if v.Mode != display.CaptureMem2Mem {
			t.Fatalf("capture mode = %v, want mem2mem", v.Mode)
		}
		if len(s.Assignments) < 2 {
			t.Fatalf("want clones plus a writeback entry, got %d assignments", len(s.Assignments))
		}
		last := s.Assignments[len(s.Assignments)-1]
		if !last.Writeback || last.Manager != sec.Manager {
			t.Errorf("last assignment writeback=%v manager=%d, want writeback on own manager",
				last.Writeback, last.Manager)
		}
		// The scan-out pipelines already scaled; the capture is one-to-one.
		if last.Crop != last.Window {
			t.Errorf("mem2mem capture crop %v != window %v", last.Crop, last.Window)
		}
	})
}
