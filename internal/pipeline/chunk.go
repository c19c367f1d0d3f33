package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/xearthlayer/xearthlayer/internal/coord"
	"github.com/xearthlayer/xearthlayer/internal/xerr"
)

// ChunkSource builds the fetch URL for one provider sub-tile.
type ChunkSource interface {
	// ChunkURL returns the URL to fetch for the given provider-space
	// row/col/zoom (see coord.ChunkCoord.ProviderTileCoord).
	ChunkURL(row, col uint32, zoom uint8) string
}

// URLTemplateSource formats a chunk URL from a simple "{z}/{x}/{y}"-style
// template, the common case for slippy-map tile providers.
type URLTemplateSource struct {
	Template string // e.g. "https://example.test/tiles/{z}/{x}/{y}.jpg"
}

func (s URLTemplateSource) ChunkURL(row, col uint32, zoom uint8) string {
	r := strings.NewReplacer(
		"{z}", fmt.Sprint(zoom),
		"{x}", fmt.Sprint(col),
		"{y}", fmt.Sprint(row),
	)
	return r.Replace(s.Template)
}

// FetchConfig controls chunk HTTP fetch retry behavior.
type FetchConfig struct {
	Client      *http.Client
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultFetchConfig returns sane defaults: 3 attempts, 200ms base delay
// doubling up to 2s, full jitter.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Client:      &http.Client{Timeout: 10 * time.Second},
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// blackChunk returns an opaque black ChunkPixels-square RGBA buffer, the
// substitute for a sub-tile whose fetch failed permanently (404, 410, or
// any other 4xx that isn't a rate limit). Unlike the whole-tile
// placeholder, this keeps the rest of the artifact intact.
func blackChunk() *image.RGBA {
	img := GetRGBA(coord.ChunkPixels, coord.ChunkPixels)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// fetchChunk downloads one provider sub-tile, retrying Transient failures
// (timeouts, connection resets, 5xx, 429) with full-jitter exponential
// backoff. A 4xx other than 429 is Permanent and not retried.
func fetchChunk(ctx context.Context, cfg FetchConfig, source ChunkSource, chunk coord.ChunkCoord) ([]byte, error) {
	row, col, zoom := chunk.ProviderTileCoord()
	url := source.ChunkURL(row, col, zoom)

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg.BaseDelay, cfg.MaxDelay, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, xerr.Wrap(xerr.Transient, "pipeline.fetchChunk", ctx.Err())
			}
		}

		data, err := doFetch(ctx, cfg.Client, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !xerr.Is(err, xerr.Transient) {
			return nil, err
		}
	}
	return nil, lastErr
}

func doFetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerr.Wrap(xerr.Input, "pipeline.doFetch", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerr.Wrap(xerr.Transient, "pipeline.doFetch", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, xerr.Wrap(xerr.Transient, "pipeline.doFetch", err)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, xerr.Wrap(xerr.Transient, "pipeline.doFetch", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, xerr.Wrap(xerr.Permanent, "pipeline.doFetch", fmt.Errorf("status %d", resp.StatusCode))
	}
}

// backoffDelay returns a full-jitter exponential delay for the given
// 1-indexed attempt count.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	if d > max || d <= 0 {
		d = max
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
