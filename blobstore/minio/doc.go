// Package minio stores volume snapshots in MinIO or any S3 compatible
// service through the MinIO client.
//
//	store, err := minio.Dial(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "volumes",
//	})
//
//	manifest, err := vol.ExportSnapshot(ctx, store, "nightly")
//
// Use NewStore to wrap an already configured *minio.Client.
package minio
