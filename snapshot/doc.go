// Package snapshot persists finalized matrices to a blobstore.BlobStore.
//
// A snapshot is a fixed header followed by an optionally compressed
// (LZ4 or zstd) payload holding the exported compressed structure. The
// payload is protected by a CRC32C checksum. Snapshot names are ULIDs, so
// lexical order is creation order; the CURRENT blob names the latest one.
//
//	name, err := snapshot.Save(ctx, store, m, snapshot.Options{Compression: snapshot.CompressionZSTD})
//	...
//	m2, err := snapshot.LoadLatest(ctx, rt, store, snapshot.Options{})
package snapshot
