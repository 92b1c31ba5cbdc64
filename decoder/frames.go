package decoder

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/harborx/harborx/manifest"
	"golang.org/x/sync/errgroup"
)

// FrameResult is the outcome of decoding one manifest entry.
type FrameResult struct {
	Entry  manifest.Entry
	Output string
	Result *Result
	Err    error
}

// DecodeFrames decodes every manifest entry into outDir/<entry ID><suffix>,
// running up to Config.Parallelism frames at once. A failing frame is
// recorded in its FrameResult and does not stop the others; the returned
// error is only set when ctx ends first. Results are in manifest order.
func (d *Decoder) DecodeFrames(ctx context.Context, m *manifest.Manifest, outDir string) ([]FrameResult, error) {
	limit := d.cfg.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	suffix := d.cfg.OutputSuffix
	if suffix == "" {
		suffix = ".jsonl"
	}

	results := make([]FrameResult, len(m.Entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range m.Entries {
		i := i
		entry := m.Entries[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(outDir, entry.ID()+suffix)
			res, abs, err := d.decodeFilesTo(gctx, entry.Paths(), out)
			results[i] = FrameResult{Entry: entry, Output: abs, Result: res, Err: err}
			if err != nil {
				d.logger.Warn("Frame failed", "frame", entry.ID(), "blobs", len(entry.Blobs), "err", err)
				return nil
			}
			d.logger.Info("Decoded frame", "frame", entry.ID(), "rows", len(res.Rows),
				"header", res.HeaderOffset, "digest", res.Digest, "out", abs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
