package config

import (
	"fmt"
)

// Platform describes the fixed hardware resources the planner budgets
// against. Defaults model a four-pipeline display subsystem with a single
// non-scaling graphics pipeline and a shared contiguous memory slot.
type Platform struct {
	// MaxPipelines is the total number of hardware compositing pipelines.
	MaxPipelines int `yaml:"max_pipelines"`
	// NonScalingPipelines is how many of them cannot scale. They occupy the
	// lowest hardware indices.
	NonScalingPipelines int `yaml:"non_scaling_pipelines"`
	// MemorySlotBytes is the shared contiguous memory budget per frame.
	MemorySlotBytes int `yaml:"memory_slot_bytes"`
	// MaxDownscale and MaxUpscale bound the scaling hardware per axis.
	MaxDownscale int `yaml:"max_downscale"`
	MaxUpscale   int `yaml:"max_upscale"`
	// MaxPixelClockKHz is the highest sink pixel clock the scaler can feed
	// while downscaling.
	MaxPixelClockKHz int `yaml:"max_pixel_clock_khz"`
}

// Behavior carries the planner tuning knobs.
type Behavior struct {
	// RGBOrder enforces that non-native color orders stay off hardware
	// pipelines instead of being swapped at commit.
	RGBOrder bool `yaml:"rgb_order"`
	// NV12Only restricts hardware pipelines to subsampled-chroma layers.
	NV12Only bool `yaml:"nv12_only"`
	// IdleTimeoutMS collapses composition to software after this long
	// without a frame; 0 disables the idle path.
	IdleTimeoutMS int `yaml:"idle_timeout_ms"`
	// UpscaledNV12Limit is the enlargement factor beyond which a
	// subsampled-chroma layer keeps its hardware pipeline even under forced
	// software composition.
	UpscaledNV12Limit float64 `yaml:"upscaled_nv12_limit"`
	// AvoidModeChange biases timing-mode selection toward the active mode.
	AvoidModeChange bool `yaml:"avoid_mode_change"`
}

// Config is the root configuration document.
type Config struct {
	Platform Platform `yaml:"platform"`
	Behavior Behavior `yaml:"behavior"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Platform: Platform{
			MaxPipelines:        4,
			NonScalingPipelines: 1,
			MemorySlotBytes:     32 << 20,
			MaxDownscale:        4,
			MaxUpscale:          8,
			MaxPixelClockKHz:    148500,
		},
		Behavior: Behavior{
			RGBOrder:          true,
			NV12Only:          false,
			IdleTimeoutMS:     250,
			UpscaledNV12Limit: 2.0,
			AvoidModeChange:   true,
		},
		LogLevel: "info",
	}
}

// Validate checks invariants the planner depends on.
func (c *Config) Validate() error {
	p := &c.Platform
	if p.MaxPipelines < 1 || p.MaxPipelines > 32 {
		return fmt.Errorf("platform.max_pipelines must be 1..32, got %d", p.MaxPipelines)
	}
	if p.NonScalingPipelines < 0 || p.NonScalingPipelines >= p.MaxPipelines {
		return fmt.Errorf("platform.non_scaling_pipelines must be 0..%d, got %d",
			p.MaxPipelines-1, p.NonScalingPipelines)
	}
	if p.MemorySlotBytes <= 0 {
		return fmt.Errorf("platform.memory_slot_bytes must be positive, got %d", p.MemorySlotBytes)
	}
	if p.MaxDownscale < 1 || p.MaxUpscale < 1 {
		return fmt.Errorf("platform scale limits must be at least 1 (down=%d up=%d)",
			p.MaxDownscale, p.MaxUpscale)
	}

	b := &c.Behavior
	if b.UpscaledNV12Limit < 0 || b.UpscaledNV12Limit > 2048 {
		return fmt.Errorf("behavior.upscaled_nv12_limit out of range: %g", b.UpscaledNV12Limit)
	}
	if b.IdleTimeoutMS < 0 {
		return fmt.Errorf("behavior.idle_timeout_ms must not be negative, got %d", b.IdleTimeoutMS)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	return nil
}
