package pipeline

import (
	"context"
	"image"
	"image/draw"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/executor"
	"github.com/xearthlayer/xearthlayer/internal/xerr"
)

// Config names the provider and artifact parameters a Run needs beyond
// the tile coordinate itself.
type Config struct {
	Source      ChunkSource
	Format      dds.Format
	MapType     string
	MipCount    int
	FetchConfig FetchConfig
}

// Run executes the full per-tile synthesis state machine: memory probe,
// disk probe, chunk fetch, decode, stitch, DXT encode, cache publish. It
// never returns an error that should propagate empty bytes to a reader —
// any unrecoverable stage failure is logged and the fixed placeholder is
// returned instead, per the read path's total-function contract.
func Run(ctx context.Context, pools *executor.Pools, c *cache.Cache, key cache.Key, cfg Config, priority executor.Priority) []byte {
	cacheKey := key.String()

	if data, ok := c.Memory.Get(cacheKey); ok {
		return data
	}

	if data, ok := c.Disk.ReadArtifact(key); ok {
		validated := dds.ValidateOrPlaceholder(data, 0)
		c.Memory.Put(cacheKey, validated)
		return validated
	}

	canvas, err := assembleCanvas(ctx, pools, c, key.Tile, cfg, priority)
	if err != nil {
		logrus.WithError(err).WithField("tile", key.Tile.String()).Warn("pipeline: assembly failed, substituting placeholder")
		placeholder := dds.Placeholder()
		c.Memory.Put(cacheKey, placeholder)
		return placeholder
	}

	mipCount := cfg.MipCount
	if mipCount <= 0 {
		mipCount = dds.StandardMipCount
	}
	encodePermit, permitErr := pools.CPU.Acquire(ctx, priority)
	if permitErr != nil {
		PutRGBA(canvas)
		logrus.WithError(permitErr).WithField("tile", key.Tile.String()).Warn("pipeline: could not acquire CPU permit for encode, substituting placeholder")
		placeholder := dds.Placeholder()
		c.Memory.Put(cacheKey, placeholder)
		return placeholder
	}
	encoder := dds.NewEncoder(cfg.Format, coord.ArtifactPixels, coord.ArtifactPixels, mipCount)
	artifact, err := encoder.Encode(canvas)
	encodePermit.Release()
	PutRGBA(canvas)
	if err != nil {
		logrus.WithError(err).WithField("tile", key.Tile.String()).Warn("pipeline: encode failed, substituting placeholder")
		placeholder := dds.Placeholder()
		c.Memory.Put(cacheKey, placeholder)
		return placeholder
	}

	if err := c.Disk.WriteArtifact(key, artifact); err != nil {
		logrus.WithError(err).WithField("tile", key.Tile.String()).Warn("pipeline: failed to persist artifact to disk")
	}
	c.Memory.Put(cacheKey, artifact)
	return artifact
}

// assembleCanvas fetches (or reads from disk cache) all 256 provider
// sub-tiles of tile, decodes each, and stitches them into one
// ArtifactPixels-square RGBA canvas.
func assembleCanvas(ctx context.Context, pools *executor.Pools, c *cache.Cache, tile coord.TileCoord, cfg Config, priority executor.Priority) (*image.RGBA, error) {
	canvas := GetRGBA(coord.ArtifactPixels, coord.ArtifactPixels)

	chunks := coord.AllChunks(tile)
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			rgba, err := fetchAndDecodeChunk(gctx, pools, c, cfg, chunk, priority)
			if err != nil {
				return err
			}
			defer PutRGBA(rgba)

			dstRect := image.Rect(
				int(chunk.ChunkCol)*coord.ChunkPixels, int(chunk.ChunkRow)*coord.ChunkPixels,
				int(chunk.ChunkCol+1)*coord.ChunkPixels, int(chunk.ChunkRow+1)*coord.ChunkPixels,
			)
			draw.Draw(canvas, dstRect, rgba, image.Point{}, draw.Src)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		PutRGBA(canvas)
		return nil, err
	}
	return canvas, nil
}

// fetchAndDecodeChunk resolves one provider sub-tile: disk cache probe,
// then network fetch + disk publish on miss, then JPEG decode.
func fetchAndDecodeChunk(ctx context.Context, pools *executor.Pools, c *cache.Cache, cfg Config, chunk coord.ChunkCoord, priority executor.Priority) (*image.RGBA, error) {
	providerID := cfg.MapType

	if err := pools.AcquireDiskIO(ctx); err != nil {
		return nil, err
	}
	data, hit := c.Disk.ReadChunk(providerID, chunk.Tile, chunk.ChunkRow, chunk.ChunkCol)
	pools.ReleaseDiskIO()

	if !hit {
		if err := pools.AcquireNetwork(ctx); err != nil {
			return nil, err
		}
		fetched, err := fetchChunk(ctx, cfg.FetchConfig, cfg.Source, chunk)
		pools.ReleaseNetwork()
		if err != nil {
			if xerr.Is(err, xerr.Permanent) {
				logrus.WithError(err).WithField("chunk", chunk).Debug("pipeline: permanent fetch failure, substituting black chunk")
				return blackChunk(), nil
			}
			return nil, err
		}
		data = fetched

		if err := pools.AcquireDiskIO(ctx); err == nil {
			if werr := c.Disk.WriteChunk(providerID, chunk.Tile, chunk.ChunkRow, chunk.ChunkCol, data); werr != nil {
				logrus.WithError(werr).Warn("pipeline: failed to persist chunk to disk")
			}
			pools.ReleaseDiskIO()
		}
	}

	permit, err := pools.CPU.Acquire(ctx, priority)
	if err != nil {
		return nil, err
	}
	defer permit.Release()

	return decodeChunk(data, coord.ChunkPixels)
}
