package display

import (
	"errors"
	"testing"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/mode"
)

func TestUpdateTransformScalingFlag(t *testing.T) {
	tests := []struct {
		name    string
		region  geom.Rect
		rot     geom.Rotation
		hflip   bool
		dst     geom.Rect
		scaling bool
	}{
		{"identity", geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1280, H: 720}, false},
		{"resolution mismatch", geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1920, H: 1080}, true},
		{"rotation forces transform", geom.Rect{W: 720, H: 1280}, geom.Rot90, false, geom.Rect{W: 1280, H: 720}, true},
		{"mirror forces transform", geom.Rect{W: 1280, H: 720}, geom.RotNone, true, geom.Rect{W: 1280, H: 720}, true},
		{"offset source region", geom.Rect{X: 320, Y: 0, W: 1280, H: 720}, geom.RotNone, false, geom.Rect{W: 1280, H: 720}, true},
		{"letterboxed destination", geom.Rect{W: 1280, H: 720}, geom.RotNone, false, geom.Rect{X: 320, Y: 0, W: 1280, H: 720}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(0, RolePrimary, LCD{}, ModeInfo{Width: 1280, Height: 720})
			d.SetViewport(tt.region, tt.rot, tt.hflip, tt.dst)
			if !d.TransformStale() {
				t.Fatal("SetViewport did not mark transform stale")
			}
			d.UpdateTransform()
			if d.TransformStale() {
				t.Fatal("UpdateTransform left transform stale")
			}
			if d.Transform.Scaling != tt.scaling {
				t.Errorf("Scaling = %v, want %v", d.Transform.Scaling, tt.scaling)
			}
		})
	}
}

func TestUpdateTransformMatrixMapsRegionOntoDestination(t *testing.T) {
	d := New(1, RoleSecondary, &HDMI{ActiveMode: -1}, ModeInfo{Width: 1920, Height: 1080})
	region := geom.Rect{W: 720, H: 1280}
	dst := geom.Rect{X: 240, Y: 0, W: 1440, H: 1080}
	d.SetViewport(region, geom.Rot90, false, dst)
	d.UpdateTransform()

	if d.Transform.Region != region {
		t.Errorf("Transform.Region = %v, want source region %v", d.Transform.Region, region)
	}
	if got := d.Transform.Matrix.ApplyToRect(region); got != dst {
		t.Errorf("matrix maps region to %v, want %v", got, dst)
	}
}

func TestConfigureModePicksAndApplies(t *testing.T) {
	h := &HDMI{
		Modes: []mode.Candidate{
			{Width: 720, Height: 480, RefreshHz: 60, PixelClockKHz: 27000, Aspect: mode.Aspect4x3},
			{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 148500, Aspect: mode.Aspect16x9},
		},
		ActiveMode: -1,
	}
	d := New(1, RoleSecondary, h, ModeInfo{Width: 1920, Height: 1080})

	var applied *mode.Candidate
	err := d.ConfigureMode(1280, 720, 1.0, config.Default().Platform, nil,
		func(_ *Display, c mode.Candidate) error {
			applied = &c
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ActiveMode != 1 {
		t.Errorf("ActiveMode = %d, want 1", h.ActiveMode)
	}
	if applied == nil || applied.Width != 1920 {
		t.Errorf("applied = %v, want 1920x1080", applied)
	}
	if d.Config.Width != 1920 || d.Config.Height != 1080 {
		t.Errorf("Config = %+v, want 1920x1080", d.Config)
	}
}

func TestConfigureModeKeepsActive(t *testing.T) {
	h := &HDMI{
		Modes: []mode.Candidate{
			{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250, Aspect: mode.Aspect16x9},
			{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 148500, Aspect: mode.Aspect16x9},
		},
		ActiveMode:      0,
		AvoidModeChange: true,
	}
	d := New(1, RoleSecondary, h, ModeInfo{Width: 1280, Height: 720})

	err := d.ConfigureMode(1280, 720, 1.0, config.Default().Platform, nil,
		func(_ *Display, _ mode.Candidate) error {
			t.Fatal("apply called for an unchanged mode")
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ActiveMode != 0 {
		t.Errorf("ActiveMode = %d, want unchanged 0", h.ActiveMode)
	}
}

func TestConfigureModeFallsBackToNative(t *testing.T) {
	h := &HDMI{
		// Catalog holds only an interlaced mode, which is never eligible.
		Modes:      []mode.Candidate{{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 74250, Interlaced: true}},
		Native:     mode.Candidate{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250},
		ActiveMode: -1,
	}
	d := New(1, RoleSecondary, h, ModeInfo{Width: 1280, Height: 720})

	if err := d.ConfigureMode(1280, 720, 1.0, config.Default().Platform, nil, nil); err != nil {
		t.Fatalf("expected native fallback, got %v", err)
	}
}

func TestConfigureModeHardFailure(t *testing.T) {
	h := &HDMI{
		Modes:      nil,
		Native:     mode.Candidate{Width: 640, Height: 480, RefreshHz: 60, PixelClockKHz: 25175},
		ActiveMode: -1,
	}
	d := New(1, RoleSecondary, h, ModeInfo{Width: 640, Height: 480})

	// An 8000-wide source exceeds even the native timing's downscale reach.
	err := d.ConfigureMode(8000, 6000, 1.0, config.Default().Platform, nil, nil)
	if !errors.Is(err, mode.ErrModeUnavailable) {
		t.Errorf("err = %v, want ErrModeUnavailable", err)
	}
}

func TestDPI(t *testing.T) {
	// 1920 px over 476mm is a 102 DPI panel.
	if got := DPI(1920, 476, 160); got != 102 {
		t.Errorf("DPI = %d, want 102", got)
	}
	if got := DPI(1920, 0, 160); got != 160 {
		t.Errorf("DPI fallback = %d, want 160", got)
	}
}
