package mode

import (
	"errors"
	"fmt"
)

// ErrModeUnavailable reports that no candidate timing mode passed the
// scaling feasibility gate. The caller falls back to the sink's native
// timing and re-validates; if even that fails, the output is unusable.
var ErrModeUnavailable = errors.New("mode: no usable timing mode")

// Aspect is a candidate's declared physical aspect hint. Broadcast-standard
// aspects are preferred during selection.
type Aspect string

const (
	AspectNone Aspect = ""
	Aspect4x3  Aspect = "4:3"
	Aspect16x9 Aspect = "16:9"
)

// Candidate is one entry of a sink's timing-mode catalog.
type Candidate struct {
	Width         int    `yaml:"width" json:"width"`
	Height        int    `yaml:"height" json:"height"`
	RefreshHz     int    `yaml:"refresh_hz" json:"refresh_hz"`
	Interlaced    bool   `yaml:"interlaced,omitempty" json:"interlaced,omitempty"`
	PixelClockKHz int    `yaml:"pixel_clock_khz" json:"pixel_clock_khz"`
	Aspect        Aspect `yaml:"aspect,omitempty" json:"aspect,omitempty"`
	// PhysWidthMM and PhysHeightMM describe the sink surface when no
	// broadcast aspect hint is declared.
	PhysWidthMM  int `yaml:"phys_width_mm,omitempty" json:"phys_width_mm,omitempty"`
	PhysHeightMM int `yaml:"phys_height_mm,omitempty" json:"phys_height_mm,omitempty"`
}

func (c Candidate) String() string {
	return fmt.Sprintf("%dx%d@%d", c.Width, c.Height, c.RefreshHz)
}
