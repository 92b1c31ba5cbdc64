package main

import (
	"fmt"

	"github.com/harborx/harborx/decoder"
	"github.com/spf13/cobra"
)

// newDecoder builds a decoder from the resolved config, resolving
// surrogates through the configured index table. The returned cleanup
// closes the table.
func (a *app) newDecoder() (*decoder.Decoder, func(), error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	opts := []decoder.Option{decoder.WithLogger(a.logger.Module("decoder"))}
	cleanup := func() {}
	if store != nil {
		opts = append(opts, decoder.WithStore(store))
		cleanup = func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("Closing index table failed", "err", err)
			}
		}
	}
	d, err := decoder.New(a.cfg.Decoder, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return d, cleanup, nil
}

func newDecodeCmd(a *app) *cobra.Command {
	var (
		out             string
		maxScan         int
		window          int
		versionedHashes bool
	)
	cmd := &cobra.Command{
		Use:   "decode --out FILE BLOB...",
		Short: "Decode the blobs of one frame into NDJSON rows",
		Long: "Decode the blobs of one frame, given in blob index order, into one\n" +
			"NDJSON row per storage update. A .gz or .zst output suffix compresses\n" +
			"the rows; blob files ending in .gz are decompressed on read.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			if cmd.Flags().Changed("max-scan") {
				a.cfg.Decoder.MaxScan = maxScan
			}
			if cmd.Flags().Changed("window") {
				a.cfg.Decoder.ParseWindow = window
			}
			if cmd.Flags().Changed("versioned-hashes") {
				a.cfg.Decoder.ComputeVersionedHashes = versionedHashes
			}
			if err := a.startMetrics(cmd.Context()); err != nil {
				return err
			}
			d, cleanup, err := a.newDecoder()
			if err != nil {
				return err
			}
			defer cleanup()

			blobs, err := decoder.ReadBlobFiles(paths)
			if err != nil {
				return err
			}
			res, err := d.DecodeFrame(cmd.Context(), blobs)
			if err != nil {
				return err
			}
			abs, err := decoder.WriteRowsFile(out, res.Rows)
			if err != nil {
				return err
			}
			a.logger.Info("Decoded frame", "blobs", len(blobs), "header", res.HeaderOffset,
				"attempts", res.ScanAttempts, "segment", res.SegmentStart)
			for i, h := range res.VersionedHashes {
				fmt.Fprintf(a.stdout, "blob %d versioned hash %s\n", i, h)
			}
			_, err = fmt.Fprintf(a.stdout, "%d rows digest %s -> %s\n", len(res.Rows), res.Digest, abs)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output NDJSON file")
	cmd.Flags().IntVar(&maxScan, "max-scan", 0, "header scan bound (offsets tried)")
	cmd.Flags().IntVar(&window, "window", 0, "state-diff start offsets tried")
	cmd.Flags().BoolVar(&versionedHashes, "versioned-hashes", false, "print each blob's EIP-4844 versioned hash")
	cmd.MarkFlagRequired("out")
	return cmd
}
