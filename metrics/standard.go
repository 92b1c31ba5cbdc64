package metrics

// Pre-defined metrics for the blob decoder. All metrics live in
// DefaultRegistry so they are globally accessible without passing a registry
// around.

var (
	// ---- Decoder metrics ----

	// FramesDecoded counts frames decoded to rows.
	FramesDecoded = DefaultRegistry.Counter("decoder.frames")
	// FrameErrors counts frames that failed at any stage.
	FrameErrors = DefaultRegistry.Counter("decoder.frame_errors")
	// BlobsDecoded counts blobs turned into coefficient vectors.
	BlobsDecoded = DefaultRegistry.Counter("decoder.blobs")
	// RowsEmitted counts flattened rows.
	RowsEmitted = DefaultRegistry.Counter("decoder.rows")
	// DecodeTime records per-frame decode duration in milliseconds.
	DecodeTime = DefaultRegistry.Histogram("decoder.decode_ms")

	// ---- Header scan metrics ----

	// ScanAttempts records the offsets tried per frame.
	ScanAttempts = DefaultRegistry.Histogram("stateless.scan_attempts")
	// HeadersNotFound counts frames whose scan found no header.
	HeadersNotFound = DefaultRegistry.Counter("stateless.headers_not_found")

	// ---- Index resolution metrics ----

	// IdxLiterals counts values classified as literals.
	IdxLiterals = DefaultRegistry.Counter("idxmap.literals")
	// IdxResolved counts surrogates found in the index table.
	IdxResolved = DefaultRegistry.Counter("idxmap.resolved")
	// IdxMisses counts surrogates passed through unresolved.
	IdxMisses = DefaultRegistry.Counter("idxmap.misses")
	// IdxStoreErrors counts failed batch lookups.
	IdxStoreErrors = DefaultRegistry.Counter("idxmap.store_errors")
	// IdxCacheHits counts lookups served by the LRU cache.
	IdxCacheHits = DefaultRegistry.Counter("idxmap.cache_hits")
)
