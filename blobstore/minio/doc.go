// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible systems such as Ceph, Garage
// and SeaweedFS, without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minioblob.New(ctx, minioblob.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "graphs",
//	    Prefix:    "prod/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	name, err := snapshot.Save(ctx, store, m, snapshot.Options{})
//
// Create streams uploads of unknown size; the object appears when the
// writer is closed.
package minio
