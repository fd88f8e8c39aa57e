// Package scenario loads YAML descriptions of display topologies and frame
// contents, so plans can be computed and inspected without a compositor or
// real hardware behind the planner.
package scenario

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/geom"
	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/mode"
	"github.com/displaykit/hwcplan/internal/planner"
)

// Display describes one output in a scenario file.
type Display struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Role   string `yaml:"role"` // primary or secondary
	Kind   string `yaml:"kind"` // lcd, hdmi or virtual
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`

	RefreshHz    int `yaml:"refresh_hz"`
	PhysWidthMM  int `yaml:"phys_width_mm"`
	PhysHeightMM int `yaml:"phys_height_mm"`

	// Modes is the timing catalog for hdmi-kind displays; the first entry
	// doubles as the native timing.
	Modes      []mode.Candidate `yaml:"modes"`
	ActiveMode int              `yaml:"active_mode"`

	MirrorOf *int `yaml:"mirror_of"`
	Blanked  bool `yaml:"blanked"`

	// Viewport: the source-space region shown, its placement on the mode,
	// and the display rotation/mirror.
	Region    *geom.Rect `yaml:"region"`
	Dest      *geom.Rect `yaml:"dest"`
	Rotation  int        `yaml:"rotation"` // quarter turns
	HFlip     bool       `yaml:"hflip"`
}

// Layer describes one layer of a frame.
type Layer struct {
	Name      string    `yaml:"name"`
	Format    string    `yaml:"format"`
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	Crop      geom.Rect `yaml:"crop"`
	Window    geom.Rect `yaml:"window"`
	Blending  string    `yaml:"blending"`
	Protected bool      `yaml:"protected"`
	Skip      bool      `yaml:"skip"`
	Rot90     bool      `yaml:"rot90"`
	FlipH     bool      `yaml:"flip_h"`
	FlipV     bool      `yaml:"flip_v"`
	// Color fills the layer's buffer for software rendering, as #rrggbb.
	Color string `yaml:"color"`
}

// Frame is one planning input: layer lists keyed by display ID.
type Frame struct {
	Layers map[int][]Layer `yaml:"layers"`
}

// Scenario is a display topology plus a sequence of frames.
type Scenario struct {
	Displays []Display `yaml:"displays"`
	Frames   []Frame   `yaml:"frames"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document.
func Parse(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks the scenario for the mistakes that would otherwise only
// surface as confusing plans.
func (s *Scenario) Validate() error {
	if len(s.Displays) == 0 {
		return fmt.Errorf("no displays")
	}
	primaries := 0
	ids := make(map[int]bool)
	for _, d := range s.Displays {
		if ids[d.ID] {
			return fmt.Errorf("display id %d used twice", d.ID)
		}
		ids[d.ID] = true
		switch d.Role {
		case "primary":
			primaries++
		case "secondary", "":
		default:
			return fmt.Errorf("display %d: unknown role %q", d.ID, d.Role)
		}
		switch d.Kind {
		case "lcd", "hdmi", "virtual", "":
		default:
			return fmt.Errorf("display %d: unknown kind %q", d.ID, d.Kind)
		}
		if d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("display %d: invalid resolution %dx%d", d.ID, d.Width, d.Height)
		}
		if d.MirrorOf != nil {
			// Mirror sources must be declared first, so self and forward
			// references are both rejected here.
			if !ids[*d.MirrorOf] || *d.MirrorOf == d.ID {
				return fmt.Errorf("display %d mirrors unknown display %d", d.ID, *d.MirrorOf)
			}
		}
	}
	if primaries != 1 {
		return fmt.Errorf("want exactly one primary display, have %d", primaries)
	}
	for i, f := range s.Frames {
		for id, layers := range f.Layers {
			if !ids[id] {
				return fmt.Errorf("frame %d: unknown display id %d", i, id)
			}
			for j, l := range layers {
				if _, err := parseFormat(l.Format); err != nil {
					return fmt.Errorf("frame %d display %d layer %d: %w", i, id, j, err)
				}
			}
		}
	}
	return nil
}

// BuildDisplays instantiates the scenario's displays, ready to attach.
func (s *Scenario) BuildDisplays() []*display.Display {
	var out []*display.Display
	for i, sd := range s.Displays {
		role := display.RoleSecondary
		if sd.Role == "primary" {
			role = display.RolePrimary
		}

		var kind display.Kind
		switch sd.Kind {
		case "hdmi":
			h := &display.HDMI{Modes: sd.Modes, ActiveMode: sd.ActiveMode}
			if len(sd.Modes) > 0 {
				h.Native = sd.Modes[0]
				if h.ActiveMode < 0 || h.ActiveMode >= len(sd.Modes) {
					h.ActiveMode = -1
				}
			} else {
				h.ActiveMode = -1
			}
			kind = h
		case "virtual":
			kind = &display.Virtual{Width: sd.Width, Height: sd.Height}
		default:
			kind = display.LCD{}
		}

		d := display.New(sd.ID, role, kind, display.ModeInfo{
			Width:     sd.Width,
			Height:    sd.Height,
			RefreshHz: sd.RefreshHz,
			DPIX:      display.DPI(sd.Width, sd.PhysWidthMM, 96),
			DPIY:      display.DPI(sd.Height, sd.PhysHeightMM, 96),
		})
		d.Name = sd.Name
		d.Manager = i
		d.PhysWidthMM = sd.PhysWidthMM
		d.PhysHeightMM = sd.PhysHeightMM
		d.Blanked = sd.Blanked
		if sd.MirrorOf != nil {
			d.MirrorOf = *sd.MirrorOf
		}

		region := geom.Rect{W: sd.Width, H: sd.Height}
		if sd.Region != nil {
			region = *sd.Region
		}
		dst := geom.Rect{W: sd.Width, H: sd.Height}
		if sd.Dest != nil {
			dst = *sd.Dest
		}
		d.SetViewport(region, geom.Rotation(sd.Rotation&3), sd.HFlip, dst)
		d.UpdateTransform()

		out = append(out, d)
	}
	return out
}

// BuildFrame converts one scenario frame into planner input. Layers are
// built fresh each call: planning mutates their composition annotations.
func (f Frame) BuildFrame() planner.Frame {
	contents := make(map[int][]*layer.Layer, len(f.Layers))
	for id, layers := range f.Layers {
		var list []*layer.Layer
		for _, sl := range layers {
			list = append(list, sl.build())
		}
		contents[id] = list
	}
	return planner.Frame{Contents: contents}
}

func (sl Layer) build() *layer.Layer {
	format, _ := parseFormat(sl.Format)

	w, h := sl.Width, sl.Height
	if w == 0 {
		w = sl.Crop.W
	}
	if h == 0 {
		h = sl.Crop.H
	}

	crop := sl.Crop
	if crop.Empty() {
		crop = geom.Rect{W: w, H: h}
	}
	win := sl.Window
	if win.Empty() {
		win = crop
	}

	var flags layer.TransformFlags
	if sl.FlipH {
		flags |= layer.FlipH
	}
	if sl.FlipV {
		flags |= layer.FlipV
	}
	if sl.Rot90 {
		flags |= layer.Rot90Flag
	}

	blending := layer.BlendNone
	switch sl.Blending {
	case "premultiplied":
		blending = layer.BlendPremult
	case "coverage":
		blending = layer.BlendCoverage
	}

	return &layer.Layer{
		Name:      sl.Name,
		Buffer:    &layer.Buffer{Format: format, Width: w, Height: h, Pixels: solidFill(w, h, sl.Color, format)},
		Crop:      crop,
		Window:    win,
		Transform: flags,
		Blending:  blending,
		Protected: sl.Protected,
		Skip:      sl.Skip,
	}
}

func parseFormat(s string) (layer.PixelFormat, error) {
	switch s {
	case "", "rgba8888":
		return layer.FormatRGBA8888, nil
	case "rgbx8888":
		return layer.FormatRGBX8888, nil
	case "bgra8888":
		return layer.FormatBGRA8888, nil
	case "bgrx8888":
		return layer.FormatBGRX8888, nil
	case "rgb565":
		return layer.FormatRGB565, nil
	case "nv12":
		return layer.FormatNV12, nil
	}
	return "", fmt.Errorf("unknown pixel format %q", s)
}

// solidFill builds a uniform buffer image for the software committer, or
// nil when the scenario gives no color. Pixels are stored in the buffer's
// byte order, so blue-first formats get the channels pre-swapped.
func solidFill(w, h int, hex string, format layer.PixelFormat) image.Image {
	c, ok := parseColor(hex)
	if !ok || w <= 0 || h <= 0 {
		return nil
	}
	if format.BGR() {
		c.R, c.B = c.B, c.R
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func parseColor(hex string) (color.NRGBA, bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{}, false
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, true
}
