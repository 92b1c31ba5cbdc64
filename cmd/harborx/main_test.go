package main

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/decoder"
	"github.com/harborx/harborx/statediff"
	"github.com/harborx/harborx/stateless"
)

// surrogate is 2^200, above the literal bound.
const surrogate = "1606938044258990275541962092341162602522202993782792835301376"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

// writeFrame writes a single-blob frame carrying diff to path.
func writeFrame(t *testing.T, path string, diff *statediff.StateDiff) {
	t.Helper()
	seg, err := statediff.EncodeSegment(diff)
	if err != nil {
		t.Fatalf("EncodeSegment: %v", err)
	}
	comp, err := stateless.Codec{}.Compress(seg)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	// A zero prefix yields empty output at each offset, so the scan moves on.
	coeffs := make(das.CoefficientVector, das.FieldElementsPerBlob)
	copy(coeffs[7:], comp)
	blob, err := das.EncodeBlob(coeffs)
	if err != nil {
		t.Fatalf("EncodeBlob: %v", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
}

func testDiff(t *testing.T, addr string) *statediff.StateDiff {
	t.Helper()
	a, err := das.ParseFelt(addr)
	if err != nil {
		t.Fatal(err)
	}
	return &statediff.StateDiff{Contracts: []statediff.ContractUpdate{{
		Address: a,
		Storage: []statediff.StorageEntry{
			{Key: das.FeltFromUint64(1), Value: das.FeltFromUint64(10)},
			{Key: das.FeltFromUint64(2), Value: das.NewFelt(big.NewInt(20))},
		},
	}}}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version) || !strings.Contains(out, commit) {
		t.Errorf("version output = %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := runCLI(t, "bogus"); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if code := run([]string{"decode"}); code != 1 {
		t.Errorf("decode without args exit code = %d, want 1", code)
	}
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	blob := filepath.Join(dir, "blob_0.bin")
	writeFrame(t, blob, testDiff(t, "0x1234"))

	out := filepath.Join(dir, "rows", "frame.jsonl.zst")
	stdout, err := runCLI(t, "decode", "--out", out, blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(stdout, "2 rows digest 0x") {
		t.Errorf("stdout = %q", stdout)
	}

	rows, err := decoder.ReadRowsFile(out)
	if err != nil {
		t.Fatalf("ReadRowsFile: %v", err)
	}
	want := []statediff.KVRow{
		{Addr: "4660", Key: "1", Value: "10"},
		{Addr: "4660", Key: "2", Value: "20"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestDecodeMaxScanFlag(t *testing.T) {
	dir := t.TempDir()
	blob := filepath.Join(dir, "blob_0.bin")
	writeFrame(t, blob, testDiff(t, "0x1234"))

	// The stream starts at offset 7.
	_, err := runCLI(t, "decode", "--max-scan", "7", "--out", filepath.Join(dir, "x.jsonl"), blob)
	if err == nil || !strings.Contains(err.Error(), "header") {
		t.Fatalf("expected header-not-found error, got %v", err)
	}
	if _, err := runCLI(t, "decode", "--max-scan", "8", "--out", filepath.Join(dir, "y.jsonl"), blob); err != nil {
		t.Fatalf("decode with max-scan 8: %v", err)
	}
}

func TestIdxmapImportResolvesDecode(t *testing.T) {
	for _, backend := range []string{"pebble", "leveldb"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			csvPath := filepath.Join(dir, "idx.csv")
			table := filepath.Join(dir, "idxmap.db")
			csv := "idx,val\n# surrogate for the contract\n" + surrogate + ",0xbeef\n"
			if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
				t.Fatal(err)
			}
			out, err := runCLI(t, "idxmap", "import", "--backend", backend, "--path", table, csvPath)
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			if !strings.HasPrefix(out, "1 rows") {
				t.Errorf("import output = %q", out)
			}

			cfgPath := filepath.Join(dir, "harborx.toml")
			cfg := fmt.Sprintf("[idxmap]\nbackend = %q\npath = %q\ncache_size = 16\n", backend, table)
			if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
				t.Fatal(err)
			}
			blob := filepath.Join(dir, "blob_0.bin")
			writeFrame(t, blob, testDiff(t, surrogate))
			rowsPath := filepath.Join(dir, "rows.jsonl")
			if _, err := runCLI(t, "--config", cfgPath, "decode", "-o", rowsPath, blob); err != nil {
				t.Fatalf("decode: %v", err)
			}
			rows, err := decoder.ReadRowsFile(rowsPath)
			if err != nil {
				t.Fatal(err)
			}
			for _, r := range rows {
				if r.Addr != "48879" {
					t.Errorf("addr = %s, want 48879", r.Addr)
				}
			}
		})
	}
}

func TestIdxmapImportRequiresPath(t *testing.T) {
	if _, err := runCLI(t, "idxmap", "import"); err == nil {
		t.Fatal("expected error without a table path")
	}
}

func TestManifestAndFrames(t *testing.T) {
	dir := t.TempDir()
	var listing strings.Builder
	listing.WriteString("eth_block,tx_hash,index,path\n")
	for i, addr := range []string{"0x10", "0x20"} {
		p := filepath.Join(dir, fmt.Sprintf("frame%d_0.bin", i))
		writeFrame(t, p, testDiff(t, addr))
		fmt.Fprintf(&listing, "%d,0xaa%d,0,%s\n", 100+i, i, p)
	}
	// Index 1 without index 0 is an incomplete frame.
	fmt.Fprintf(&listing, "200,0xbb,1,%s\n", filepath.Join(dir, "frame0_0.bin"))
	listingPath := filepath.Join(dir, "blobs.csv")
	if err := os.WriteFile(listingPath, []byte(listing.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	manifestPath := filepath.Join(dir, "decoder_manifest.json")
	out, err := runCLI(t, "manifest", "--listing", listingPath, "--out", manifestPath)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if !strings.HasPrefix(out, "2 frames") {
		t.Errorf("manifest output = %q", out)
	}

	outDir := filepath.Join(dir, "decoded")
	out, err = runCLI(t, "frames", "-m", manifestPath, "-o", outDir, "-j", "2")
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	for _, id := range []string{"100_aa0", "101_aa1"} {
		if !strings.Contains(out, id+"\t2\t") {
			t.Errorf("frames output missing %s: %q", id, out)
		}
		if _, err := os.Stat(filepath.Join(outDir, id+".jsonl")); err != nil {
			t.Errorf("output for %s: %v", id, err)
		}
	}
}

func TestFramesReportsFailures(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "m.json")
	m := `{"entries":[{"eth_block":1,"starknet_block":0,"blobs":[{"path":"` +
		filepath.ToSlash(filepath.Join(dir, "missing.bin")) + `"}]}]}`
	if err := os.WriteFile(manifestPath, []byte(m), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "frames", "-m", manifestPath, "-o", dir)
	if err == nil {
		t.Fatal("expected error for failed frame")
	}
	if !strings.Contains(out, "FAILED") {
		t.Errorf("frames output = %q", out)
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := runCLI(t, "config", "--log-format", "json")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"[decoder]", "max_scan = 16384", "[idxmap]", "backend = 'pebble'", "format = 'json'"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}
