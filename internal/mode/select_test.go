package mode

import (
	"errors"
	"testing"

	"github.com/displaykit/hwcplan/internal/config"
)

func platform() config.Platform {
	return config.Default().Platform
}

func TestSelectBestModeKeepsActiveExactMatch(t *testing.T) {
	candidates := []Candidate{
		{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250, Aspect: Aspect16x9},
		{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 148500, Aspect: Aspect16x9},
		{Width: 1920, Height: 1080, RefreshHz: 50, PixelClockKHz: 148500, Aspect: Aspect16x9},
	}
	req := Request{
		Width: 1920, Height: 1080, PixelAspect: 1, RefreshHz: 60,
		Current: 1, AvoidModeChange: false,
	}

	// The exact match wins even without the keep bias.
	got, err := SelectBestMode(candidates, req, platform(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("SelectBestMode = %d, want 1", got)
	}

	// With the active exact match and mode changes avoided, it must stay.
	req.AvoidModeChange = true
	got, err = SelectBestMode(candidates, req, platform(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("SelectBestMode = %d, want active mode 1", got)
	}
}

func TestSelectBestModePrefersBroadcastAspect(t *testing.T) {
	candidates := []Candidate{
		{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250},
		{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250, Aspect: Aspect16x9},
	}
	req := Request{Width: 1280, Height: 720, PixelAspect: 1, RefreshHz: 60, Current: -1}

	got, err := SelectBestMode(candidates, req, platform(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("SelectBestMode = %d, want CEA candidate 1", got)
	}
}

func TestSelectBestModePrefersSameOrHigherRefresh(t *testing.T) {
	candidates := []Candidate{
		{Width: 1280, Height: 720, RefreshHz: 50, PixelClockKHz: 74250, Aspect: Aspect16x9},
		{Width: 1280, Height: 720, RefreshHz: 75, PixelClockKHz: 92813, Aspect: Aspect16x9},
	}
	req := Request{Width: 1280, Height: 720, PixelAspect: 1, RefreshHz: 60, Current: -1}

	got, err := SelectBestMode(candidates, req, platform(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("SelectBestMode = %d, want higher-refresh candidate 1", got)
	}
}

func TestSelectBestModeSkipsInterlacedAndInfeasible(t *testing.T) {
	candidates := []Candidate{
		{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 74250, Interlaced: true},
		{Width: 1920, Height: 1080, RefreshHz: 60, PixelClockKHz: 0},
	}
	req := Request{Width: 1920, Height: 1080, PixelAspect: 1, RefreshHz: 60, Current: -1}

	_, err := SelectBestMode(candidates, req, platform(), nil)
	if !errors.Is(err, ErrModeUnavailable) {
		t.Errorf("err = %v, want ErrModeUnavailable", err)
	}
}

func TestSelectBestModeFeasibilityGate(t *testing.T) {
	candidates := []Candidate{
		{Width: 640, Height: 480, RefreshHz: 60, PixelClockKHz: 25175, Aspect: Aspect4x3},
	}
	// 4000-wide source cannot be downscaled 6x with a 4x limit.
	req := Request{Width: 4000, Height: 3000, PixelAspect: 1, RefreshHz: 60, Current: -1}

	_, err := SelectBestMode(candidates, req, platform(), nil)
	if !errors.Is(err, ErrModeUnavailable) {
		t.Errorf("err = %v, want ErrModeUnavailable", err)
	}
}

func TestSelectBestModeTieKeepsFirst(t *testing.T) {
	c := Candidate{Width: 1280, Height: 720, RefreshHz: 60, PixelClockKHz: 74250, Aspect: Aspect16x9}
	candidates := []Candidate{c, c, c}
	req := Request{Width: 1280, Height: 720, PixelAspect: 1, RefreshHz: 60, Current: -1}

	got, err := SelectBestMode(candidates, req, platform(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("SelectBestMode = %d, want 0 on tie", got)
	}
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		aspect       float64
		modeW, modeH int
		physW, physH int
		wantW, wantH int
	}{
		{"same aspect fills", 1280, 720, 1, 1920, 1080, 16, 9, 1920, 1080},
		{"wide source letterboxed", 1280, 720, 1, 1024, 768, 4, 3, 1024, 768 * 3 / 4},
		{"tall source pillarboxed", 640, 480, 1, 1920, 1080, 16, 9, 1440, 1080},
		{"square pixels assumed", 1280, 720, 1, 1280, 720, 0, 0, 1280, 720},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitDimensions(tt.srcW, tt.srcH, tt.aspect, tt.modeW, tt.modeH, tt.physW, tt.physH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("FitDimensions = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCanScale(t *testing.T) {
	p := platform() // down 4x, up 8x, clock ceiling 148500

	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		twoDim                 bool
		pixClk                 int
		want                   bool
	}{
		{"1:1", 1920, 1080, 1920, 1080, false, 148500, true},
		{"2x up", 960, 540, 1920, 1080, false, 148500, true},
		{"9x up rejected", 100, 100, 900, 900, false, 25175, false},
		{"4x down ok", 1920, 1080, 480, 270, false, 25175, true},
		{"5x down rejected", 2000, 2000, 400, 400, false, 25175, false},
		{"2d halves downscale", 1920, 1080, 640, 360, true, 25175, false},
		{"downscale clock bound", 1920, 2160, 1920, 1080, false, 148500, false},
		{"degenerate dst", 1920, 1080, 0, 0, false, 148500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanScale(tt.srcW, tt.srcH, tt.dstW, tt.dstH, tt.twoDim, p, tt.pixClk)
			if got != tt.want {
				t.Errorf("CanScale = %v, want %v", got, tt.want)
			}
		})
	}
}
