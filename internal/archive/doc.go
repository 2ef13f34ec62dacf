// Package archive uploads build and conformance artifacts to S3-compatible
// object storage.
//
// Objects are keyed "<prefix>/<key>/<basename>", so every harness run or
// build revision gets its own directory in the bucket. Credentials are
// static keys; the bucket is created on first use when missing.
//
// Example usage:
//
//	arc, err := archive.New(archive.Config{
//	    Endpoint:  "minio.internal:9000",
//	    Bucket:    "conduit-ci",
//	    Prefix:    "tessera",
//	    AccessKey: accessKey,
//	    SecretKey: secretKey,
//	    Secure:    true,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := arc.EnsureBucket(ctx); err != nil {
//	    return err
//	}
//	objects, err := arc.Upload(ctx, "complement/"+report.RunID, report.Raw, report.Results)
package archive
