package tui

import (
	"fmt"
	"strings"

	"github.com/displaykit/hwcplan/internal/planner"
)

// renderPlanPreview draws a plan's pipeline windows as boxes on a character
// canvas scaled down from the display resolution. Boxes are labelled with
// their pipeline index, the fallback output with "FB".
func renderPlanPreview(p *planner.Plan, dispW, dispH, width, height int) []string {
	if p == nil || dispW <= 0 || dispH <= 0 || width < 5 || height < 3 {
		return emptyCanvas(width, height)
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	// Bottom-most first so higher z-orders overdraw lower ones, the same
	// way the pipelines stack.
	for z := 0; z < len(p.Assignments); z++ {
		for _, a := range p.Assignments {
			if a.Writeback || !a.Enabled || a.Z != z {
				continue
			}
			label := fmt.Sprintf("%d", a.Pipe)
			if p.Fallback && a.Z == p.FallbackZ && a.Addressing == planner.AddrLayer && a.Buffer == p.Buffers-1 {
				label = "FB"
			}
			drawWindow(canvas, a, label, dispW, dispH, width, height)
		}
	}

	drawBorder(canvas, width, height)

	lines := make([]string, height)
	for i, row := range canvas {
		lines[i] = string(row)
	}
	return lines
}

func drawWindow(canvas [][]rune, a planner.Assignment, label string, dispW, dispH, canvasW, canvasH int) {
	x1 := a.Window.X * canvasW / dispW
	y1 := a.Window.Y * canvasH / dispH
	x2 := a.Window.Right() * canvasW / dispW
	y2 := a.Window.Bottom() * canvasH / dispH

	if x1 < 1 {
		x1 = 1
	}
	if y1 < 1 {
		y1 = 1
	}
	if x2 >= canvasW-1 {
		x2 = canvasW - 2
	}
	if y2 >= canvasH-1 {
		y2 = canvasH - 2
	}
	if x2 <= x1 || y2 <= y1 {
		return
	}

	for x := x1; x <= x2; x++ {
		canvas[y1][x] = '─'
		canvas[y2][x] = '─'
	}
	for y := y1; y <= y2; y++ {
		canvas[y][x1] = '│'
		canvas[y][x2] = '│'
	}
	canvas[y1][x1] = '┌'
	canvas[y1][x2] = '┐'
	canvas[y2][x1] = '└'
	canvas[y2][x2] = '┘'

	centerY := (y1 + y2) / 2
	centerX := (x1 + x2) / 2
	startX := centerX - len(label)/2
	for i, r := range label {
		if startX+i > x1 && startX+i < x2 && centerY > y1 && centerY < y2 {
			canvas[centerY][startX+i] = r
		}
	}
}

func drawBorder(canvas [][]rune, width, height int) {
	for x := 0; x < width; x++ {
		canvas[0][x] = '═'
		canvas[height-1][x] = '═'
	}
	for y := 0; y < height; y++ {
		canvas[y][0] = '║'
		canvas[y][width-1] = '║'
	}
	canvas[0][0] = '╔'
	canvas[0][width-1] = '╗'
	canvas[height-1][0] = '╚'
	canvas[height-1][width-1] = '╝'
}

func emptyCanvas(width, height int) []string {
	if width < 0 {
		width = 0
	}
	lines := make([]string, 0, height)
	empty := strings.Repeat(" ", width)
	for i := 0; i < height; i++ {
		lines = append(lines, empty)
	}
	return lines
}
