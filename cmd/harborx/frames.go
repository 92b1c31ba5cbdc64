package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/manifest"
	"github.com/spf13/cobra"
)

func newFramesCmd(a *app) *cobra.Command {
	var (
		manifestPath string
		outDir       string
		parallelism  int
	)
	cmd := &cobra.Command{
		Use:   "frames --manifest FILE --out DIR",
		Short: "Decode every frame of a manifest, one NDJSON file per frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("parallelism") {
				a.cfg.Decoder.Parallelism = parallelism
			}
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			if err := a.startMetrics(cmd.Context()); err != nil {
				return err
			}
			d, cleanup, err := a.newDecoder()
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := d.DecodeFrames(cmd.Context(), m, outDir)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(a.stdout, "%s\tFAILED\t%v\n", r.Entry.ID(), r.Err)
					continue
				}
				fmt.Fprintf(a.stdout, "%s\t%d\t%s\t%s\n", r.Entry.ID(), len(r.Result.Rows), r.Result.Digest, r.Output)
			}
			a.logger.Info("Decoded manifest", "frames", len(results), "failed", failed)
			if failed > 0 {
				return errors.Newf("%d of %d frames failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", manifest.DefaultFileName, "frame manifest")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "j", 0, "frames decoded at once (0: GOMAXPROCS)")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newManifestCmd(a *app) *cobra.Command {
	var listing, out string
	cmd := &cobra.Command{
		Use:   "manifest --listing FILE --out FILE",
		Short: "Group a blob listing into complete frames",
		Long: "Read a CSV listing of eth_block,tx_hash,index,path rows and write a\n" +
			"manifest of frames whose blobs form a complete 0..k index set.",
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			f, err := os.Open(listing)
			if err != nil {
				return errors.Wrap(err, "open listing")
			}
			defer f.Close()
			files, err := manifest.ReadListing(f)
			if err != nil {
				return err
			}
			m, dropped, err := manifest.Group(files)
			if err != nil {
				return err
			}
			if dropped > 0 {
				a.logger.Warn("Dropped incomplete frames", "frames", dropped)
			}
			if err := manifest.Save(out, &m); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%d frames -> %s\n", len(m.Entries), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&listing, "listing", "l", "", "CSV blob listing")
	cmd.Flags().StringVarP(&out, "out", "o", manifest.DefaultFileName, "manifest to write")
	cmd.MarkFlagRequired("listing")
	return cmd
}
