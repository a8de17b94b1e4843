// Package s3 stores matrix snapshots in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("graphs/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = snapshot.Save(ctx, store, m)
//
// Reads use ranged GETs, streaming writes use multipart uploads, and small
// puts carry a CRC32C checksum. Wrap a Store in a DDBCommitStore when several
// writers may move the CURRENT pointer concurrently.
package s3
