// Package s3 stores volume snapshots in Amazon S3 or any S3 compatible
// service.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("volumes/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	manifest, err := vol.ExportSnapshot(ctx, store, "nightly")
//
// Reads use ranged GETs so a snapshot frame can be fetched without the rest
// of the object. Streaming writes go through the multipart upload manager.
package s3
