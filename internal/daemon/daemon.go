// Package daemon runs the planning loop: it owns the device, replans when
// something invalidates the current composition, and reacts to output
// hotplug.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/planner"
)

// FrameSource supplies the layer lists for each planning pass.
type FrameSource interface {
	NextFrame() planner.Frame
}

// Config holds configuration for the daemon loop.
type Config struct {
	// IdleTimeout is how long composition may sit unchanged before the
	// pipelines are handed back to software. Zero disables the idle path.
	IdleTimeout time.Duration
	// Platform constrains mode selection for hotplugged outputs.
	Platform config.Platform
	Logger   *slog.Logger
}

// Daemon drives a planner device from invalidation to invalidation.
type Daemon struct {
	device *planner.Device
	source FrameSource
	logger *slog.Logger

	idleTimeout time.Duration
	platform    config.Platform

	kick     chan struct{}
	prepared atomic.Int64

	mu    sync.Mutex
	plans map[int]*planner.Plan
}

// New creates a daemon around an existing device and frame source.
func New(cfg Config, device *planner.Device, source FrameSource) *Daemon {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		device:      device,
		source:      source,
		logger:      logger,
		idleTimeout: cfg.IdleTimeout,
		platform:    cfg.Platform,
		kick:        make(chan struct{}, 1),
	}
	device.OnInvalidate(d.Invalidate)
	return d
}

// Run blocks planning frames until the context is cancelled. The first
// frame is planned immediately.
func (d *Daemon) Run(ctx context.Context) {
	d.logger.Info("daemon started", "idle_timeout", d.idleTimeout)

	var idle *time.Timer
	var idleC <-chan time.Time
	if d.idleTimeout > 0 {
		idle = time.NewTimer(d.idleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	d.plan()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopped", "frames", d.prepared.Load())
			return
		case <-d.kick:
			d.plan()
			if idle != nil {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(d.idleTimeout)
			}
		case <-idleC:
			d.handleIdle()
			idle.Reset(d.idleTimeout)
		}
	}
}

// plan performs a single prepare/commit pass.
func (d *Daemon) plan() {
	defer func() {
		if err := recover(); err != nil {
			d.logger.Error("planner panic recovered", "error", err)
		}
	}()

	frame := d.source.NextFrame()
	plans, err := d.device.Prepare(frame)
	if err != nil {
		d.logger.Error("prepare failed", "error", err)
		return
	}
	d.device.Commit()
	d.prepared.Add(1)

	d.mu.Lock()
	d.plans = plans
	d.mu.Unlock()
}

// handleIdle hands the pipelines back to software after a quiet period, so
// an unchanged frame does not hold hardware resources.
func (d *Daemon) handleIdle() {
	snap := d.device.Snapshot()
	if snap.ForceSoftware > 0 {
		return
	}
	hardware := false
	for _, ds := range snap.Displays {
		if ds.Plan != nil && len(ds.Plan.Assignments) > 0 && !ds.Plan.Fallback {
			hardware = true
			break
		}
	}
	if !hardware {
		return
	}
	d.logger.Debug("idle, forcing software composition")
	d.device.ForceSoftware(2)
}

// Invalidate schedules a fresh planning pass. Safe from any goroutine;
// coalesces with a pending one.
func (d *Daemon) Invalidate() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Plans returns the most recent planning result.
func (d *Daemon) Plans() map[int]*planner.Plan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plans
}

// Snapshot exposes the device state for IPC queries.
func (d *Daemon) Snapshot() planner.Snapshot { return d.device.Snapshot() }

// SetBlanked blanks or unblanks a display.
func (d *Daemon) SetBlanked(id int, blanked bool) { d.device.SetBlanked(id, blanked) }

// SetMirror wires display cloning.
func (d *Daemon) SetMirror(id, srcID int) { d.device.SetMirror(id, srcID) }

// ForceSoftware pushes composition to software for the next frames.
func (d *Daemon) ForceSoftware(frames int) { d.device.ForceSoftware(frames) }

// FramesPrepared reports how many frames have been planned.
func (d *Daemon) FramesPrepared() int64 { return d.prepared.Load() }
