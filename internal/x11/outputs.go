package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/mode"
)

// Output is one connected RandR output with its active geometry and the
// timing catalog it advertises.
type Output struct {
	ID      int
	Name    string
	Primary bool

	// Active CRTC geometry.
	X, Y          int
	Width, Height int
	RefreshHz     int

	PhysWidthMM  int
	PhysHeightMM int

	// Modes is the advertised catalog; Native is the preferred entry.
	Modes  []mode.Candidate
	Native mode.Candidate
}

// Outputs enumerates the connected outputs with their mode catalogs.
func (c *Connection) Outputs() ([]Output, error) {
	conn := c.XUtil.Conn()

	res, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	modesByID := make(map[uint32]randr.ModeInfo, len(res.Modes))
	for _, m := range res.Modes {
		modesByID[m.Id] = m
	}

	var primaryOutput randr.Output
	if p, err := randr.GetOutputPrimary(conn, c.Root).Reply(); err == nil {
		primaryOutput = p.Output
	}

	var outputs []Output
	for i, out := range res.Outputs {
		info, err := randr.GetOutputInfo(conn, out, res.ConfigTimestamp).Reply()
		if err != nil || info.Connection != randr.ConnectionConnected {
			continue
		}

		o := Output{
			ID:           i,
			Name:         string(info.Name),
			Primary:      out == primaryOutput,
			PhysWidthMM:  int(info.MmWidth),
			PhysHeightMM: int(info.MmHeight),
		}

		for j, id := range info.Modes {
			mi, ok := modesByID[uint32(id)]
			if !ok {
				continue
			}
			cand := modeCandidate(mi)
			o.Modes = append(o.Modes, cand)
			// RandR lists the preferred timing first.
			if j == 0 {
				o.Native = cand
			}
		}

		if info.Crtc != 0 {
			crtc, err := randr.GetCrtcInfo(conn, info.Crtc, res.ConfigTimestamp).Reply()
			if err == nil && crtc.Width > 0 && crtc.Height > 0 {
				o.X = int(crtc.X)
				o.Y = int(crtc.Y)
				o.Width = int(crtc.Width)
				o.Height = int(crtc.Height)
				if mi, ok := modesByID[uint32(crtc.Mode)]; ok {
					o.RefreshHz = refreshRate(mi)
				}
			}
		}

		outputs = append(outputs, o)
	}
	return outputs, nil
}

// modeCandidate converts a RandR timing into a selector candidate.
func modeCandidate(mi randr.ModeInfo) mode.Candidate {
	return mode.Candidate{
		Width:         int(mi.Width),
		Height:        int(mi.Height),
		RefreshHz:     refreshRate(mi),
		Interlaced:    mi.ModeFlags&randr.ModeFlagInterlace != 0,
		PixelClockKHz: int(mi.DotClock / 1000),
		Aspect:        aspectOf(int(mi.Width), int(mi.Height)),
	}
}

// refreshRate derives the vertical refresh from the dot clock and totals.
func refreshRate(mi randr.ModeInfo) int {
	total := int(mi.Htotal) * int(mi.Vtotal)
	if total == 0 {
		return 0
	}
	// Interlaced modes scan half the lines per field.
	if mi.ModeFlags&randr.ModeFlagInterlace != 0 {
		total /= 2
	}
	return int((int64(mi.DotClock) + int64(total)/2) / int64(total))
}

// aspectOf maps exact broadcast proportions to the CEA aspect hints.
func aspectOf(w, h int) mode.Aspect {
	switch {
	case w*3 == h*4:
		return mode.Aspect4x3
	case w*9 == h*16:
		return mode.Aspect16x9
	}
	return mode.AspectNone
}

// Display converts an output into a planner display record. The first
// catalog entry doubles as the native timing when RandR reports none.
func (o Output) Display(id int, role display.Role) *display.Display {
	var kind display.Kind
	if role == display.RolePrimary {
		kind = display.LCD{}
	} else {
		kind = &display.HDMI{
			Modes:      o.Modes,
			Native:     o.Native,
			ActiveMode: o.activeModeIndex(),
		}
	}
	d := display.New(id, role, kind, display.ModeInfo{
		Width:     o.Width,
		Height:    o.Height,
		RefreshHz: o.RefreshHz,
		DPIX:      display.DPI(o.Width, o.PhysWidthMM, 96),
		DPIY:      display.DPI(o.Height, o.PhysHeightMM, 96),
	})
	d.Name = o.Name
	d.Manager = id
	d.PhysWidthMM = o.PhysWidthMM
	d.PhysHeightMM = o.PhysHeightMM
	return d
}

func (o Output) activeModeIndex() int {
	for i, m := range o.Modes {
		if m.Width == o.Width && m.Height == o.Height && m.RefreshHz == o.RefreshHz {
			return i
		}
	}
	return -1
}
