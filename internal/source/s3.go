package source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rshade/costlens/internal/ingest"
)

// objectGetter is the subset of *s3.Client used by S3.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures NewS3.
type S3Options struct {
	Bucket string
	// Key is the default object; Query.Scope overrides it.
	Key    string
	Region string
	// Endpoint selects an S3-compatible server such as MinIO and enables
	// path-style addressing.
	Endpoint string
	// Sheet selects the worksheet of an XLSX export.
	Sheet string
}

// S3 downloads a cost export object and parses it with the ingest readers.
type S3 struct {
	client objectGetter
	bucket string
	key    string
	sheet  string
}

// NewS3 loads the default AWS configuration chain and builds a client.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3WithClient(client, opts), nil
}

func newS3WithClient(client objectGetter, opts S3Options) *S3 {
	return &S3{client: client, bucket: opts.Bucket, key: opts.Key, sheet: opts.Sheet}
}

// Name implements Source.
func (s *S3) Name() string { return "s3" }

// Fetch implements Source. The format comes from the object key extension,
// falling back to the object's content type.
func (s *S3) Fetch(ctx context.Context, q Query) (ingest.RawTable, error) {
	key := strings.TrimPrefix(q.Scope, "/")
	if key == "" {
		key = s.key
	}
	if key == "" {
		return ingest.RawTable{}, fail(s.Name(), errors.New("no object key configured"))
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ingest.RawTable{}, fail(s.Name(), fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err))
	}
	defer func() { _ = out.Body.Close() }()

	format, err := ingest.DetectFormat(path.Base(key))
	if err != nil {
		format, err = ingest.FormatFromContentType(aws.ToString(out.ContentType))
		if err != nil {
			return ingest.RawTable{}, fail(s.Name(), err)
		}
	}

	table, err := ingest.Read(ctx, out.Body, ingest.ReadOptions{Format: format, Sheet: s.sheet})
	if err != nil {
		return ingest.RawTable{}, fail(s.Name(), fmt.Errorf("parse s3://%s/%s: %w", s.bucket, key, err))
	}
	return table, nil
}
