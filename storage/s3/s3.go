// Package s3 implements storage.Storage on Amazon S3 and S3-compatible stores.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(ctx context.Context, cfg storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return NewStorage(ctx, cfg)
	})
}

// API is the subset of the S3 client the storage uses.
type API interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Storage implements storage.Storage using Amazon S3 (or S3-compatible services).
type Storage struct {
	client API
	bucket string
	prefix string
}

// NewStorage creates a new S3 storage client from the given config.
func NewStorage(ctx context.Context, cfg storage.Config) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a storage on an existing client.
func NewWithClient(client API, bucket, prefix string) *Storage {
	return &Storage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *Storage) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *Storage) relative(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// Upload writes data from reader to S3.
func (s *Storage) Upload(ctx context.Context, p string, reader io.Reader) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   reader,
	})
	if err != nil {
		return fmt.Errorf("storage: s3 upload: %w", err)
	}
	return nil
}

// Download returns a reader for the S3 object at the given path.
func (s *Storage) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 download: %w", err)
	}
	return out.Body, nil
}

// Delete removes an S3 object. Returns nil if the object does not exist.
func (s *Storage) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 delete: %w", err)
	}
	return nil
}

// Exists checks whether an S3 object exists.
func (s *Storage) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("storage: s3 head: %w", err)
	}
	return true, nil
}

// List returns metadata for all objects whose path starts with prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	full := prefix
	if s.prefix != "" {
		full = s.prefix + "/" + prefix
	}
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	}

	var files []storage.FileInfo
	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list: %w", err)
		}
		for _, obj := range out.Contents {
			fi := storage.FileInfo{
				Path: s.relative(aws.ToString(obj.Key)),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				fi.LastModified = *obj.LastModified
			}
			files = append(files, fi)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Ping checks that the bucket exists and the credentials can reach it.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("storage: s3 bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
