package decoder

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/statediff"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ReadBlobFile reads one blob from disk. Files ending in ".gz" are
// decompressed.
func ReadBlobFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "decoder: opening blob")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "decoder: reading gzip blob %s", path)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decoder: reading blob %s", path)
	}
	return data, nil
}

// ReadBlobFiles reads the blobs of one frame in the given order.
func ReadBlobFiles(paths []string) ([][]byte, error) {
	blobs := make([][]byte, len(paths))
	for i, p := range paths {
		b, err := ReadBlobFile(p)
		if err != nil {
			return nil, err
		}
		blobs[i] = b
	}
	return blobs, nil
}

// DecodeFiles decodes the blob files of one frame and writes the rows to out
// as NDJSON. It returns the absolute output path.
func (d *Decoder) DecodeFiles(ctx context.Context, paths []string, out string) (string, error) {
	_, abs, err := d.decodeFilesTo(ctx, paths, out)
	return abs, err
}

func (d *Decoder) decodeFilesTo(ctx context.Context, paths []string, out string) (*Result, string, error) {
	blobs, err := ReadBlobFiles(paths)
	if err != nil {
		return nil, "", err
	}
	res, err := d.DecodeFrame(ctx, blobs)
	if err != nil {
		return nil, "", err
	}
	abs, err := WriteRowsFile(out, res.Rows)
	if err != nil {
		return nil, "", err
	}
	return res, abs, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func compressWriter(path string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return gzip.NewWriter(w), nil
	case strings.HasSuffix(path, ".zst"):
		return zstd.NewWriter(w)
	default:
		return nopCloser{w}, nil
	}
}

// WriteRowsFile writes rows as NDJSON to path, creating parent directories.
// A ".gz" or ".zst" suffix compresses the output. The file is written under
// a temporary name and renamed into place. It returns the absolute path.
func WriteRowsFile(path string, rows []statediff.KVRow) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "decoder: resolving output path")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", errors.Wrap(err, "decoder: creating output directory")
	}
	tmp := abs + ".tmp"
	if err := writeRows(tmp, rows); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, abs); err != nil {
		return "", errors.Wrap(err, "decoder: renaming output")
	}
	return abs, nil
}

func writeRows(path string, rows []statediff.KVRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "decoder: creating output")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "decoder: closing output")
		}
	}()

	bw := bufio.NewWriter(f)
	// Compression is chosen by the final name, not the temporary one.
	cw, err := compressWriter(strings.TrimSuffix(path, ".tmp"), bw)
	if err != nil {
		return errors.Wrap(err, "decoder: creating compressor")
	}
	if err := statediff.WriteRows(cw, rows); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, "decoder: flushing compressor")
	}
	return errors.Wrap(bw.Flush(), "decoder: flushing output")
}

// ReadRowsFile reads an NDJSON rows file written by WriteRowsFile.
func ReadRowsFile(path string) ([]statediff.KVRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "decoder: opening rows")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "decoder: reading gzip rows")
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "decoder: reading zstd rows")
		}
		defer zr.Close()
		r = zr
	}
	return statediff.ReadRows(r)
}
