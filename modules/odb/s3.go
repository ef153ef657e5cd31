package odb

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/antgroup/forgecore/modules/plumbing"
)

// S3Client is the subset of *s3.Client this package depends on, narrowed for
// testability.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage stores loose objects as individual keys under prefix in an S3
// (or S3-compatible) bucket, used as a remote fallback behind a local
// FilesystemStorage in MultiStorage.
type S3Storage struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Storage returns a WritableStorage backed by bucket, keying objects
// under prefix+"objects/ab/cdef...".
func NewS3Storage(client S3Client, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Storage) key(oid plumbing.Hash) string {
	h := oid.String()
	return s.prefix + "objects/" + h[:2] + "/" + h[2:]
}

func (s *S3Storage) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(oid)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *S3Storage) Exists(oid plumbing.Hash) error {
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(oid)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return plumbing.NoSuchObject(oid)
		}
		return err
	}
	return nil
}

// IsCompressed reports true: Store persists exactly the zlib-framed bytes
// Database hands it, same as FilesystemStorage.
func (s *S3Storage) IsCompressed() bool { return true }

func (s *S3Storage) Close() error { return nil }

func (s *S3Storage) Store(oid plumbing.Hash, r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	_, err = s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(oid)),
		Body:   bytes.NewReader(buf),
	})
	if err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}
