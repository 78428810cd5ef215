// Package storage provides the destination abstraction the output sink
// writes resized photos to, with pluggable backends.
//
// # Backends
//
//   - storage/local: a directory tree on the local filesystem
//   - storage/s3: Amazon S3 and S3-compatible object stores
//   - storage/memory: an in-memory store for tests
//
// # Configuration
//
//	storage:
//	  provider: "s3"
//	  bucket: "photos"
//	  prefix: "ingest/2024"
//	  region: "eu-west-1"
//
// With the local provider the base path defaults to the --output directory.
package storage
