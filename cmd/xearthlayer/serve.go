package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xearthlayer/xearthlayer/internal/aircraft"
	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/config"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/executor"
	"github.com/xearthlayer/xearthlayer/internal/fsys"
	"github.com/xearthlayer/xearthlayer/internal/ortho"
	"github.com/xearthlayer/xearthlayer/internal/pipeline"
	"github.com/xearthlayer/xearthlayer/internal/prefetch"
)

// fallbackMemoryBudget is used when cache.ComputeMemoryBudget can't
// detect system RAM or the fraction-derived budget is too small.
const fallbackMemoryBudget = 256 << 20

func addServeCommand(parent *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Mount the orthophoto texture filesystem and serve reads",
		Long:  "Loads configuration, builds the union scenery index and caches, mounts the FUSE filesystem, and runs until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	parent.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return &startupError{err}
	}
	if err := cfg.Validate(); err != nil {
		return &startupError{err}
	}

	sources, err := ortho.ScanSources(cfg.SceneryRoot)
	if err != nil {
		return &startupError{fmt.Errorf("scanning scenery root: %w", err)}
	}
	index := ortho.BuildIndex(sources)
	logrus.WithFields(logrus.Fields{
		"sources": index.SourceNames(),
		"files":   index.FileCount(),
	}).Info("serve: scenery index built")

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

	mountPoint, err := cfg.AbsMountPoint()
	if err != nil {
		return &startupError{err}
	}

	var readCount uint64
	deps := fsys.Deps{
		Index:     index,
		Config:    cfg,
		Cache:     artifactCache,
		Pools:     pools,
		Executor:  exec,
		ReadCount: &readCount,
	}

	server, err := fsys.Mount(mountPoint, deps)
	if err != nil {
		return &mountError{err}
	}
	logrus.WithField("mount_point", mountPoint).Info("serve: mounted")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aggregator := aircraft.NewAggregator()
	primaryProvider := cfg.Providers[0]
	coordinator := prefetch.NewCoordinator(prefetch.CoordinatorConfigFromToml(cfg.Prefetch), pools)
	coordinator.SetTurnDetector(prefetch.TurnDetectorFromToml(cfg.Prefetch))

	group, gctx := errgroup.WithContext(ctx)

	udpListener := aircraft.NewUDPListener(cfg.Aircraft.UDPPort)
	group.Go(func() error {
		return udpListener.Run(gctx)
	})
	group.Go(func() error {
		for {
			select {
			case t := <-udpListener.Updates:
				aggregator.UpdateUDP(t, time.Now())
			case <-gctx.Done():
				return nil
			}
		}
	})
	group.Go(func() error {
		runPrefetchLoop(gctx, coordinator, aggregator, exec, artifactCache, primaryProvider)
		return nil
	})

	<-ctx.Done()
	logrus.Info("serve: shutdown signal received, unmounting")
	if err := server.Unmount(); err != nil {
		logrus.WithError(err).Warn("serve: unmount reported an error")
	}
	_ = group.Wait()

	return errInterrupted
}

// runPrefetchLoop drives the adaptive prefetcher from the aggregator's
// broadcast stream: every tick it feeds the latest known aircraft state
// into the coordinator and executes whatever plan comes back.
func runPrefetchLoop(ctx context.Context, coordinator *prefetch.Coordinator, aggregator *aircraft.Aggregator, exec *executor.Executor, artifactCache *cache.Cache, provider config.Provider) {
	ticker := time.NewTicker(prefetch.MinCycleInterval)
	defer ticker.Stop()

	format := providerFormat(provider)
	newJob := func(tile coord.TileCoord) executor.Job {
		key := cache.Key{ProviderID: provider.ID, Format: format, Tile: tile}
		cfg := pipeline.Config{
			Source:      pipeline.URLTemplateSource{Template: provider.URLTemplate},
			Format:      format,
			MapType:     provider.ID,
			MipCount:    provider.MipCount,
			FetchConfig: pipeline.DefaultFetchConfig(),
		}
		return func(ctx context.Context, pools *executor.Pools, priority executor.Priority) (interface{}, error) {
			return pipeline.Run(ctx, pools, artifactCache, key, cfg, priority), nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			state := aggregator.Current()
			if !state.IsFresh(now) {
				continue
			}
			groundSpeedKt := state.Speed * 1.943844
			plan := coordinator.Update(now, state.Latitude, state.Longitude, state.Track, groundSpeedKt)
			if plan.IsEmpty() {
				continue
			}
			submitted := coordinator.Execute(ctx, exec, plan, newJob)
			for i := 0; i < submitted; i++ {
				coordinator.RecordCompletion(now)
			}
			logrus.WithField("tiles", submitted).Debug("serve: prefetch cycle executed")
		}
	}
}

func providerFormat(p config.Provider) dds.Format {
	if p.Format == "BC3" {
		return dds.BC3
	}
	return dds.BC1
}
