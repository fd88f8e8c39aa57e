package x11

import (
	"testing"

	"github.com/BurntSushi/xgb/randr"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/mode"
)

func TestModeCandidate(t *testing.T) {
	// 1920x1080@60: 148.5MHz over 2200x1125 totals = 60Hz.
	mi := randr.ModeInfo{
		Width:    1920,
		Height:   1080,
		DotClock: 148500000,
		Htotal:   2200,
		Vtotal:   1125,
	}
	c := modeCandidate(mi)
	want := mode.Candidate{
		Width: 1920, Height: 1080, RefreshHz: 60,
		PixelClockKHz: 148500, Aspect: mode.Aspect16x9,
	}
	if c != want {
		t.Errorf("modeCandidate = %+v, want %+v", c, want)
	}
}

func TestModeCandidateInterlaced(t *testing.T) {
	// 1080i: half the lines per field doubles the field rate.
	mi := randr.ModeInfo{
		Width:     1920,
		Height:    1080,
		DotClock:  74250000,
		Htotal:    2200,
		Vtotal:    1125,
		ModeFlags: randr.ModeFlagInterlace,
	}
	c := modeCandidate(mi)
	if !c.Interlaced {
		t.Fatal("interlace flag not carried over")
	}
	if c.RefreshHz != 60 {
		t.Errorf("RefreshHz = %d, want 60 (field rate)", c.RefreshHz)
	}
}

func TestAspectOf(t *testing.T) {
	tests := []struct {
		w, h int
		want mode.Aspect
	}{
		{640, 480, mode.Aspect4x3},
		{1920, 1080, mode.Aspect16x9},
		{1280, 720, mode.Aspect16x9},
		{1280, 1024, mode.AspectNone},
		{2560, 1080, mode.AspectNone},
	}
	for _, tt := range tests {
		if got := aspectOf(tt.w, tt.h); got != tt.want {
			t.Errorf("aspectOf(%d, %d) = %q, want %q", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestOutputDisplay(t *testing.T) {
	o := Output{
		ID:           1,
		Name:         "HDMI-1",
		Width:        1920,
		Height:       1080,
		RefreshHz:    60,
		PhysWidthMM:  476,
		PhysHeightMM: 268,
		Modes: []mode.Candidate{
			{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250},
			{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 148500},
		},
	}

	d := o.Display(1, display.RoleSecondary)
	h := d.HDMIKind()
	if h == nil {
		t.Fatal("secondary output did not become a variable-mode display")
	}
	if h.ActiveMode != 1 {
		t.Errorf("ActiveMode = %d, want 1 (the 1920x1080 entry)", h.ActiveMode)
	}
	if d.Config.Width != 1920 || d.Config.Height != 1080 {
		t.Errorf("Config = %+v, want 1920x1080", d.Config)
	}
	// 1920 px over 476mm is a 102 DPI panel.
	if d.Config.DPIX != 102 {
		t.Errorf("DPIX = %d, want 102", d.Config.DPIX)
	}

	p := o.Display(0, display.RolePrimary)
	if _, ok := p.Kind.(display.LCD); !ok {
		t.Errorf("primary output kind = %T, want LCD", p.Kind)
	}
}
