package tui

import (
	"strings"
	"testing"

	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/planner"
)

func TestRenderPlanPreviewDrawsWindows(t *testing.T) {
	p := &planner.Plan{
		Assignments: []planner.Assignment{
			{
				Pipe: 1, Z: 0, Enabled: true,
				Window:     geom.Rect{X: 0, Y: 0, W: 1280, H: 720},
				Addressing: planner.AddrLayer,
			},
		},
	}
	lines := renderPlanPreview(p, 1280, 720, 40, 12)
	if len(lines) != 12 {
		t.Fatalf("got %d lines, want 12", len(lines))
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "1") {
		t.Error("pipe label missing from preview")
	}
	if !strings.Contains(joined, "┌") || !strings.Contains(joined, "┘") {
		t.Error("window box missing from preview")
	}
	if !strings.HasPrefix(lines[0], "╔") {
		t.Errorf("missing outer border: %q", lines[0])
	}
}

func TestRenderPlanPreviewSkipsDisabled(t *testing.T) {
	p := &planner.Plan{
		Assignments: []planner.Assignment{
			{
				Pipe: 2, Z: 0, Enabled: false,
				Window:     geom.Rect{W: 1280, H: 720},
				Addressing: planner.AddrLayer,
			},
		},
	}
	lines := renderPlanPreview(p, 1280, 720, 40, 12)
	if strings.Contains(strings.Join(lines, "\n"), "2") {
		t.Error("disabled assignment drawn")
	}
}

func TestRenderPlanPreviewLabelsFallback(t *testing.T) {
	p := &planner.Plan{
		Fallback:  true,
		FallbackZ: 0,
		Buffers:   1,
		Assignments: []planner.Assignment{
			{
				Pipe: 0, Z: 0, Enabled: true,
				Window:     geom.Rect{W: 1280, H: 720},
				Addressing: planner.AddrLayer,
				Buffer:     0,
			},
		},
	}
	lines := renderPlanPreview(p, 1280, 720, 40, 12)
	if !strings.Contains(strings.Join(lines, "\n"), "FB") {
		t.Error("fallback label missing")
	}
}

func TestRenderPlanPreviewNilPlan(t *testing.T) {
	lines := renderPlanPreview(nil, 1280, 720, 20, 5)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			t.Errorf("non-empty canvas line: %q", l)
		}
	}
}
