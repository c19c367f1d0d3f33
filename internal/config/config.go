// Package config loads the xearthlayer.toml configuration file: mount
// and scenery paths, cache budgets, resource pool sizes, and the set of
// imagery providers the pipeline may synthesise textures from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// Provider describes one imagery source addressable by its map-type
// identifier (the "{MAPTYPE}" segment of a DDS filename).
type Provider struct {
	ID          string `toml:"id"`
	URLTemplate string `toml:"url_template"`
	Format      string `toml:"format"`    // "BC1" or "BC3"
	MipCount    int    `toml:"mip_count"` // 0 means dds.StandardMipCount
}

// Config is the root of xearthlayer.toml.
type Config struct {
	MountPoint  string     `toml:"mount_point"`
	SceneryRoot string     `toml:"scenery_root"`
	CacheRoot   string     `toml:"cache_root"`
	Providers   []Provider `toml:"providers"`

	Pools    PoolConfig     `toml:"pools"`
	Cache    CacheConfig    `toml:"cache"`
	Aircraft AircraftConfig `toml:"aircraft"`
	Prefetch PrefetchConfig `toml:"prefetch"`
}

// PoolConfig holds the resource-scheduled executor's pool sizes. Only
// NetworkPermits is passed to executor.NewPools; the disk-I/O and CPU
// pools are sized from internal/sysinfo, and DiskIOPermits and
// CPUPermits are loaded but not read by any component.
type PoolConfig struct {
	NetworkPermits int `toml:"network_permits"`
	DiskIOPermits  int `toml:"disk_io_permits"`
	CPUPermits     int `toml:"cpu_permits"`
}

// CacheConfig bounds the two-tier cache.
type CacheConfig struct {
	MemoryBudgetFraction float64 `toml:"memory_budget_fraction"`
	DiskBudgetBytes      int64   `toml:"disk_budget_bytes"`
	GCIntervalSeconds    int     `toml:"gc_interval_seconds"`
}

// AircraftConfig configures the telemetry aggregator's UDP listener.
type AircraftConfig struct {
	UDPPort int `toml:"udp_port"`
}

// PrefetchConfig tunes the adaptive prefetcher: phase/turn detection,
// ground-ring and cruise-band geometry, and the circuit breaker that
// pauses it under resource pressure.
type PrefetchConfig struct {
	Enabled                   bool    `toml:"enabled"`
	MaxTilesPerCycle          int     `toml:"max_tiles_per_cycle"`
	MinCycleIntervalSeconds   float64 `toml:"min_cycle_interval_seconds"`
	PhaseSpeedThresholdKt     float64 `toml:"phase_speed_threshold_kt"`
	PhaseHysteresisSeconds    float64 `toml:"phase_hysteresis_seconds"`
	TurnStabilityThresholdDeg float64 `toml:"turn_stability_threshold_deg"`
	TurnThresholdDeg          float64 `toml:"turn_threshold_deg"`
	TurnStabilitySeconds      float64 `toml:"turn_stability_seconds"`
	GroundLeadTiles           int     `toml:"ground_lead_tiles"`
	CruiseLeadTiles           int     `toml:"cruise_lead_tiles"`
	CruiseBandWidth           int     `toml:"cruise_band_width"`
	BreakerOpenMillis         int     `toml:"breaker_open_millis"`
	BreakerHalfOpenMillis     int     `toml:"breaker_half_open_millis"`
	RecalibrationSeconds      float64 `toml:"recalibration_interval_seconds"`
	DegradationThreshold      float64 `toml:"degradation_threshold"`
	RecoveryThreshold         float64 `toml:"recovery_threshold"`
}

// Default returns a Config with every field set to a reasonable default,
// suitable when no xearthlayer.toml is present.
func Default() *Config {
	return &Config{
		MountPoint:  "./xearthlayer-mnt",
		SceneryRoot: "./scenery",
		CacheRoot:   "./xearthlayer-cache",
		Providers: []Provider{
			{ID: "BI", URLTemplate: "https://example-imagery.test/bi/{z}/{x}/{y}.jpg", Format: "BC1"},
		},
		Pools: PoolConfig{
			NetworkPermits: 16,
			DiskIOPermits:  minInt(runtime.NumCPU()*4, 64),
			CPUPermits:     runtime.NumCPU(),
		},
		Cache: CacheConfig{
			MemoryBudgetFraction: 0.25,
			DiskBudgetBytes:      8 << 30,
			GCIntervalSeconds:    60,
		},
		Aircraft: AircraftConfig{UDPPort: 49002},
		Prefetch: PrefetchConfig{
			Enabled:                   true,
			MaxTilesPerCycle:          50,
			MinCycleIntervalSeconds:   2,
			PhaseSpeedThresholdKt:     40,
			PhaseHysteresisSeconds:    2,
			TurnStabilityThresholdDeg: 5,
			TurnThresholdDeg:          15,
			TurnStabilitySeconds:      10,
			GroundLeadTiles:           1,
			CruiseLeadTiles:           2,
			CruiseBandWidth:           1,
			BreakerOpenMillis:         500,
			BreakerHalfOpenMillis:     2000,
			RecalibrationSeconds:      10,
			DegradationThreshold:      0.70,
			RecoveryThreshold:         0.90,
		},
	}
}

// Load reads path and returns a Config overlaying Default() with whatever
// path specifies. A missing file is not an error: Default() is returned
// unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first structural problem found in cfg, or nil.
func (c *Config) Validate() error {
	if c.MountPoint == "" {
		return fmt.Errorf("config: mount_point must be set")
	}
	if c.SceneryRoot == "" {
		return fmt.Errorf("config: scenery_root must be set")
	}
	if c.CacheRoot == "" {
		return fmt.Errorf("config: cache_root must be set")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("config: provider with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.URLTemplate == "" {
			return fmt.Errorf("config: provider %q missing url_template", p.ID)
		}
		if p.Format != "BC1" && p.Format != "BC3" {
			return fmt.Errorf("config: provider %q has invalid format %q", p.ID, p.Format)
		}
	}
	return nil
}

// ProviderByID returns the provider with the given map-type identifier.
func (c *Config) ProviderByID(id string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

// AbsMountPoint resolves MountPoint relative to the current directory.
func (c *Config) AbsMountPoint() (string, error) {
	return filepath.Abs(c.MountPoint)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
