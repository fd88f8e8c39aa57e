// Package fbsim renders composition plans in software, standing in for the
// scanout hardware when plans are inspected offline. Each enabled assignment
// is cropped, oriented, scaled and pasted exactly as its pipeline would be
// programmed.
//
// Buffer pixels are treated as raw scanline bytes read in RGBA order, so
// blue-first buffers look channel-swapped until the plan's red/blue output
// swap corrects them.
package fbsim

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/planner"
)

// RenderFrame renders every plan of a prepared frame. Layer pixels come from
// the frame's contents; displays supplies resolutions and mirror wiring.
func RenderFrame(plans map[int]*planner.Plan, frame planner.Frame, displays map[int]*display.Display) (map[int]*image.NRGBA, error) {
	tables := make(map[int][]image.Image, len(plans))
	for id, p := range plans {
		d := displays[id]
		if d == nil {
			return nil, fmt.Errorf("fbsim: plan for unknown display %d", id)
		}
		tables[id] = BufferTable(p, frame.Contents[id], d.Config.Width, d.Config.Height)
	}

	out := make(map[int]*image.NRGBA, len(plans))
	for id, p := range plans {
		d := displays[id]
		var src *planner.Plan
		var srcTable []image.Image
		if p.Mirrored && d.MirrorOf >= 0 {
			src = plans[d.MirrorOf]
			srcTable = tables[d.MirrorOf]
		}
		img, err := Render(p, tables[id], src, srcTable, d.Config.Width, d.Config.Height)
		if err != nil {
			return nil, err
		}
		out[id] = img
	}
	return out, nil
}

// BufferTable builds a plan's buffer table from its layer list: one image
// per hardware-composited layer in list order, plus the software-composited
// fallback output when the plan carries one. Entries may be nil when a layer
// supplies no pixels; such assignments render as nothing.
func BufferTable(p *planner.Plan, layers []*layer.Layer, w, h int) []image.Image {
	var table []image.Image
	for _, l := range layers {
		if l.Composition != layer.CompositionHardware {
			continue
		}
		var img image.Image
		if l.Buffer != nil {
			img = l.Buffer.Pixels
		}
		table = append(table, img)
	}
	if p.Fallback {
		fb := composeFallback(layers, w, h)
		// The fallback buffer is written in the framebuffer's byte order.
		if len(p.Assignments) > 0 && p.Assignments[0].Format.BGR() {
			swapChannels(fb)
		}
		table = append(table, fb)
	}
	return table
}

// Render draws one plan onto a canvas of the given size. src and srcTable
// belong to the mirror source and are nil for ordinary plans.
func Render(p *planner.Plan, table []image.Image, src *planner.Plan, srcTable []image.Image, w, h int) (*image.NRGBA, error) {
	canvas := imaging.New(w, h, color.NRGBA{A: 255})

	ordered := make([]planner.Assignment, 0, len(p.Assignments))
	for _, a := range p.Assignments {
		if a.Writeback || !a.Enabled {
			continue
		}
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Z < ordered[j].Z })

	for _, a := range ordered {
		buf, err := resolve(a, table, src, srcTable)
		if err != nil {
			return nil, err
		}
		if buf == nil {
			continue
		}
		img := orient(buf, a.Crop, a.Rotation, a.Mirror, a.Window)
		if img == nil {
			continue
		}
		// YUV pipelines convert color directly; the red/blue swap applies
		// to the RGB-addressed ones only.
		if p.SwapRB && !a.Format.SubsampledChroma() {
			swapChannels(img)
		}
		if a.Blended {
			canvas = imaging.Overlay(canvas, img, image.Pt(a.Window.X, a.Window.Y), 1.0)
		} else {
			canvas = imaging.Paste(canvas, img, image.Pt(a.Window.X, a.Window.Y))
		}
	}
	return canvas, nil
}

func resolve(a planner.Assignment, table []image.Image, src *planner.Plan, srcTable []image.Image) (image.Image, error) {
	switch a.Addressing {
	case planner.AddrLayer:
		if a.Buffer < 0 || a.Buffer >= len(table) {
			return nil, fmt.Errorf("fbsim: buffer slot %d outside table of %d", a.Buffer, len(table))
		}
		return table[a.Buffer], nil
	case planner.AddrClone:
		if src == nil || a.Buffer < 0 || a.Buffer >= len(src.Assignments) {
			return nil, fmt.Errorf("fbsim: clone source assignment %d unavailable", a.Buffer)
		}
		s := src.Assignments[a.Buffer]
		if s.Buffer < 0 || s.Buffer >= len(srcTable) {
			return nil, fmt.Errorf("fbsim: clone source buffer slot %d outside table of %d", s.Buffer, len(srcTable))
		}
		return srcTable[s.Buffer], nil
	}
	return nil, fmt.Errorf("fbsim: unknown addressing %q", a.Addressing)
}

// composeFallback merges the layers left to software into one image, the
// way the GPU pass would before the fallback pipeline scans it out.
func composeFallback(layers []*layer.Layer, w, h int) *image.NRGBA {
	canvas := imaging.New(w, h, color.NRGBA{})
	for _, l := range layers {
		if l.Composition == layer.CompositionHardware {
			continue
		}
		if l.Buffer == nil || l.Buffer.Pixels == nil {
			continue
		}
		rot, mirror := l.Transform.RotationMirror()
		img := orient(l.Buffer.Pixels, l.Crop, rot, mirror, l.Window)
		if img == nil {
			continue
		}
		if l.Blended() {
			canvas = imaging.Overlay(canvas, img, image.Pt(l.Window.X, l.Window.Y), 1.0)
		} else {
			canvas = imaging.Paste(canvas, img, image.Pt(l.Window.X, l.Window.Y))
		}
	}
	return canvas
}

// orient crops, rotates, mirrors and scales a source image to fit win.
func orient(src image.Image, crop geom.Rect, rot geom.Rotation, mirror bool, win geom.Rect) *image.NRGBA {
	if crop.Empty() || win.Empty() {
		return nil
	}
	img := imaging.Crop(src, image.Rect(crop.X, crop.Y, crop.Right(), crop.Bottom()))
	// geom rotations are clockwise on a y-down screen; imaging rotates
	// counter-clockwise.
	switch rot & 3 {
	case geom.Rot90:
		img = imaging.Rotate270(img)
	case geom.Rot180:
		img = imaging.Rotate180(img)
	case geom.Rot270:
		img = imaging.Rotate90(img)
	}
	if mirror {
		img = imaging.FlipH(img)
	}
	if img.Bounds().Dx() != win.W || img.Bounds().Dy() != win.H {
		img = imaging.Resize(img, win.W, win.H, imaging.Lanczos)
	}
	return img
}

func swapChannels(img *image.NRGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
	}
}
