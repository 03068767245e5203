// SPDX-License-Identifier: MPL-2.0

// Package objectstore uploads build artifacts to S3-compatible object storage.
package objectstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

const (
	// DefaultRegion is used when the target names none. S3-compatible
	// servers such as MinIO accept any region.
	DefaultRegion = "us-east-1"

	// DigestMetadataKey is the user metadata key holding the object digest.
	DigestMetadataKey = "digest"

	digestAlgorithm = "blake3"
)

// ErrMissingBucket is returned by New when Config.Bucket is empty.
var ErrMissingBucket = errors.New("bucket is required")

type (
	// Config addresses a bucket. Endpoint, Region and the static credentials
	// are optional; unset values fall back to the default AWS chain.
	Config struct {
		Bucket    string
		Endpoint  string
		Region    string
		AccessKey string
		SecretKey string
	}

	// Object describes an uploaded object.
	Object struct {
		Bucket string
		Key    string
		Size   int64
		Digest string
	}

	// Option configures an Uploader.
	Option func(*Uploader)

	// Uploader puts files into one bucket.
	Uploader struct {
		client *s3.Client
		bucket string
		fs     afero.Fs
		logger *log.Logger
	}
)

// WithLogger sets the uploader logger.
func WithLogger(logger *log.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithFs sets the filesystem files are read from.
func WithFs(fsys afero.Fs) Option {
	return func(u *Uploader) {
		u.fs = fsys
	}
}

// New creates an Uploader for cfg. A custom endpoint switches the client to
// path-style addressing.
func New(ctx context.Context, cfg Config, opts ...Option) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		// Trailing checksums are not understood by every S3-compatible server.
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	u := &Uploader{
		client: client,
		bucket: cfg.Bucket,
		fs:     afero.NewOsFs(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Bucket returns the target bucket.
func (u *Uploader) Bucket() string { return u.bucket }

// UploadFile puts the file at path under key. The blake3 digest of the
// content is stored as object metadata.
func (u *Uploader) UploadFile(ctx context.Context, path, key string) (Object, error) {
	f, err := u.fs.Open(path)
	if err != nil {
		return Object{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	digest, size, err := Digest(f)
	if err != nil {
		return Object{}, fmt.Errorf("digest %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Object{}, fmt.Errorf("rewind %s: %w", path, err)
	}

	u.logger.Info("uploading object", "file", path, "bucket", u.bucket, "key", key, "size", size)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		Metadata:      map[string]string{DigestMetadataKey: digest},
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s to s3://%s/%s: %w", path, u.bucket, key, err)
	}
	return Object{Bucket: u.bucket, Key: key, Size: size, Digest: digest}, nil
}

// Digest returns the "blake3:<hex>" digest of r and the number of bytes read.
func Digest(r io.Reader) (string, int64, error) {
	h := blake3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return digestAlgorithm + ":" + hex.EncodeToString(h.Sum(nil)), n, nil
}
