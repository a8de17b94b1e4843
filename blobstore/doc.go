// Package blobstore abstracts the storage that matrix snapshots are saved to.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and tooling
//   - LocalStore: a local directory; reads are memory mapped
//   - s3.Store, s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: MinIO and other S3-compatible services
//
// # The CURRENT pointer
//
// The blob named CurrentName holds the name of the latest snapshot. Plain
// stores overwrite it with Put; s3.DDBCommitStore commits it through a
// DynamoDB conditional write so concurrent writers cannot lose updates.
package blobstore
