package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/config"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/executor"
	"github.com/xearthlayer/xearthlayer/internal/ortho"
	"github.com/xearthlayer/xearthlayer/internal/pipeline"
	"github.com/xearthlayer/xearthlayer/internal/prefetch"
	"github.com/xearthlayer/xearthlayer/internal/prewarm"
)

var (
	prewarmICAO     string
	prewarmLat      float64
	prewarmLon      float64
	prewarmProvider string
	prewarmRadius   int
)

func addPrewarmCommand(parent *cobra.Command) {
	prewarmCmd := &cobra.Command{
		Use:   "prewarm",
		Short: "Pre-populate the tile cache around an airport before a flight",
		Long:  "Computes a tile set around a manually-seeded position, filters out tiles already in cache, and submits the remainder to the executor at bounded concurrency.",
		Args:  cobra.NoArgs,
		RunE:  runPrewarm,
	}
	prewarmCmd.Flags().StringVar(&prewarmICAO, "icao", "", "Airport ICAO identifier (label only, for status output)")
	prewarmCmd.Flags().Float64Var(&prewarmLat, "lat", 0, "Seed latitude")
	prewarmCmd.Flags().Float64Var(&prewarmLon, "lon", 0, "Seed longitude")
	prewarmCmd.Flags().StringVar(&prewarmProvider, "provider", "", "Provider id from xearthlayer.toml (defaults to the first configured provider)")
	prewarmCmd.Flags().IntVar(&prewarmRadius, "radius", 256, "Max tiles the ground strategy may enumerate")
	_ = prewarmCmd.MarkFlagRequired("icao")
	parent.AddCommand(prewarmCmd)
}

func runPrewarm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return &startupError{err}
	}
	if err := cfg.Validate(); err != nil {
		return &startupError{err}
	}

	provider := cfg.Providers[0]
	if prewarmProvider != "" {
		p, ok := cfg.ProviderByID(prewarmProvider)
		if !ok {
			return &startupError{fmt.Errorf("prewarm: no provider %q in config", prewarmProvider)}
		}
		provider = p
	}
	format := providerFormat(provider)

	sources, err := ortho.ScanSources(cfg.SceneryRoot)
	if err != nil {
		return &startupError{fmt.Errorf("scanning scenery root: %w", err)}
	}
	index := ortho.BuildIndex(sources)

	pools := executor.NewPools(int64(cfg.Pools.NetworkPermits))
	exec := executor.New(pools)

	memBudget := cache.ComputeMemoryBudget(cfg.Cache.MemoryBudgetFraction)
	if memBudget == 0 {
		memBudget = fallbackMemoryBudget
	}
	mem := cache.NewMemoryCache(memBudget)
	disk := cache.NewDiskCache(cfg.CacheRoot)
	artifactCache := cache.New(mem, disk, time.Duration(cfg.Cache.GCIntervalSeconds)*time.Second, cfg.Cache.DiskBudgetBytes)
	artifactCache.Start()
	defer artifactCache.Shutdown()

	ground := prefetch.NewGroundStrategy(prewarmRadius)
	tiles := ground.Plan(prewarmLat, prewarmLon, nil)

	newKey := func(tile coord.TileCoord) cache.Key {
		return cache.Key{ProviderID: provider.ID, Format: format, Tile: tile}
	}
	newJob := func(tile coord.TileCoord) executor.Job {
		key := newKey(tile)
		pcfg := pipeline.Config{
			Source:      pipeline.URLTemplateSource{Template: provider.URLTemplate},
			Format:      format,
			MapType:     provider.ID,
			MipCount:    provider.MipCount,
			FetchConfig: pipeline.DefaultFetchConfig(),
		}
		return func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
			return pipeline.Run(ctx, pools, artifactCache, key, pcfg, priority), nil
		}
	}
	diskExists := func(tile coord.TileCoord) bool {
		return artifactCache.Disk.HasArtifact(newKey(tile)) || index.DDSExists(tile, provider.ID)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle := prewarm.Start(ctx, prewarmICAO, tiles, exec, newKey, mem, diskExists, newJob)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	cancelSignal := ctx.Done()
	for {
		select {
		case <-ticker.C:
			st := handle.Status()
			logrus.WithFields(logrus.Fields{
				"icao":      st.ICAO,
				"progress":  st.ProgressFraction(),
				"completed": st.Completed,
				"failed":    st.Failed,
				"cacheHits": st.CacheHits,
				"diskHits":  st.DiskHits,
			}).Info("prewarm: progress")
			if st.IsComplete {
				if st.WasCanceled {
					return errInterrupted
				}
				return nil
			}
		case <-cancelSignal:
			handle.Cancel()
			cancelSignal = nil // already requested; stop re-selecting a closed channel
		}
	}
}
