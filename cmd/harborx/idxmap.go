package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/idxmap"
	"github.com/spf13/cobra"
)

func newIdxmapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idxmap",
		Short: "Manage the surrogate index table",
	}
	cmd.AddCommand(newIdxmapImportCmd(a))
	return cmd
}

func newIdxmapImportCmd(a *app) *cobra.Command {
	var (
		backend string
		path    string
		batch   int
	)
	cmd := &cobra.Command{
		Use:   "import [CSV...]",
		Short: "Load idx,val rows into the index table",
		Long: "Load idx,val CSV rows (decimal or 0x hex) into the index table,\n" +
			"creating it if needed. Reads standard input when no file is given.",
		RunE: func(cmd *cobra.Command, files []string) error {
			if cmd.Flags().Changed("backend") {
				a.cfg.Idxmap.Backend = backend
			}
			if cmd.Flags().Changed("path") {
				a.cfg.Idxmap.Path = path
			}
			if a.cfg.Idxmap.Path == "" {
				return errors.New("idxmap path not set (use --path or [idxmap] path)")
			}
			table, err := idxmap.Create(a.cfg.Idxmap.Backend, a.cfg.Idxmap.Path)
			if err != nil {
				return err
			}
			defer table.Close()

			total := 0
			importOne := func(name string, r io.Reader) error {
				n, err := idxmap.Import(cmd.Context(), r, table, batch)
				total += n
				if err != nil {
					return errors.Wrapf(err, "%s", name)
				}
				a.logger.Info("Imported index rows", "file", name, "rows", n)
				return nil
			}
			if len(files) == 0 {
				if err := importOne("stdin", cmd.InOrStdin()); err != nil {
					return err
				}
			}
			for _, name := range files {
				f, err := os.Open(name)
				if err != nil {
					return errors.Wrap(err, "open csv")
				}
				err = importOne(name, f)
				f.Close()
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(a.stdout, "%d rows -> %s (%s)\n", total, a.cfg.Idxmap.Path, a.cfg.Idxmap.Backend)
			return err
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "table backend (pebble, leveldb)")
	cmd.Flags().StringVar(&path, "path", "", "table directory")
	cmd.Flags().IntVar(&batch, "batch", idxmap.DefaultImportBatch, "rows per write batch")
	return cmd
}
