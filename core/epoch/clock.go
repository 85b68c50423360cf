package epoch

import (
	"sync/atomic"
	"time"
)

// HeightSource exposes the external block counter. Heights must never decrease.
type HeightSource interface {
	Height() uint64
}

// Clock derives epoch indexes from a HeightSource. It holds no state of its own.
type Clock struct {
	cfg    Config
	source HeightSource
}

// NewClock binds a validated configuration to a height source.
func NewClock(cfg Config, source HeightSource) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Clock{cfg: cfg, source: source}, nil
}

// EpochAt returns the epoch containing height. Heights before genesis map to epoch zero.
func (c *Clock) EpochAt(height uint64) uint64 {
	if c == nil || c.cfg.Length == 0 || height < c.cfg.GenesisHeight {
		return 0
	}
	return (height - c.cfg.GenesisHeight) / c.cfg.Length
}

// CurrentEpoch reads the source height and converts it.
func (c *Clock) CurrentEpoch() uint64 {
	if c == nil || c.source == nil {
		return 0
	}
	return c.EpochAt(c.source.Height())
}

// Config returns the clock configuration.
func (c *Clock) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// ManualHeight is a HeightSource advanced explicitly, used by tests and scenario replays.
type ManualHeight struct {
	height atomic.Uint64
}

// NewManualHeight starts the counter at height.
func NewManualHeight(height uint64) *ManualHeight {
	m := &ManualHeight{}
	m.height.Store(height)
	return m
}

// Height implements HeightSource.
func (m *ManualHeight) Height() uint64 { return m.height.Load() }

// Mine advances the counter by n blocks and returns the new height.
func (m *ManualHeight) Mine(n uint64) uint64 { return m.height.Add(n) }

// WallClock derives a height from elapsed wall time at a fixed block interval.
type WallClock struct {
	start    time.Time
	interval time.Duration
	now      func() time.Time
}

// NewWallClock counts one block per interval since start.
func NewWallClock(start time.Time, interval time.Duration) *WallClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &WallClock{start: start, interval: interval, now: time.Now}
}

// Height implements HeightSource.
func (w *WallClock) Height() uint64 {
	elapsed := w.now().Sub(w.start)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed / w.interval)
}
