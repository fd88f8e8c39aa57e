package daemon

import (
	"context"
	"time"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/x11"
)

// secondaryID is the device slot hotplugged outputs land in. The primary
// panel keeps slot 0 for its whole lifetime.
const secondaryID = 1

// WatchOutputs follows RandR hotplug and keeps the device's secondary
// display in step with the connected outputs. Blocks until the context is
// cancelled.
func (d *Daemon) WatchOutputs(ctx context.Context, conn *x11.Connection, interval time.Duration) {
	events := conn.Watch(ctx, interval)
	for ev := range events {
		switch ev.Type {
		case x11.EventAttach:
			if ev.Output.Primary {
				continue
			}
			d.attachOutput(ev.Output)
		case x11.EventDetach:
			if ev.Output.Primary {
				continue
			}
			d.logger.Info("output detached", "name", ev.Output.Name)
			d.device.DetachDisplay(secondaryID)
		case x11.EventChange:
			if ev.Output.Primary {
				continue
			}
			// Geometry changed under us; rebuild the display.
			d.device.DetachDisplay(secondaryID)
			d.attachOutput(ev.Output)
		}
	}
}

func (d *Daemon) attachOutput(o x11.Output) {
	nd := o.Display(secondaryID, display.RoleSecondary)

	if h := nd.HDMIKind(); h != nil && h.ActiveMode < 0 {
		src := d.device.Snapshot()
		if len(src.Displays) > 0 {
			cfg := src.Displays[0].Config
			if err := nd.ConfigureMode(cfg.Width, cfg.Height, 1, d.platform, nil, nil); err != nil {
				d.logger.Warn("no usable mode for output", "name", o.Name, "error", err)
				return
			}
		}
	}

	d.logger.Info("output attached",
		"name", o.Name,
		"mode", nd.Config.Width,
		"height", nd.Config.Height,
		"refresh", nd.Config.RefreshHz)
	d.device.AttachDisplay(nd)
}
