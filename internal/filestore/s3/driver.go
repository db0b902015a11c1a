// Package s3 provides an Amazon S3 (or S3-compatible) implementation of
// filestore.Store on top of aws-sdk-go-v2.
package s3

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/filestore"
)

// api is the subset of *s3.Client the driver calls.
type api interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Driver is an S3 implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client  api
	presign presigner
	region  string
	bucket  string
}

// New loads the AWS configuration for cfg.Region, applies static keys and
// a custom endpoint when given, and pings the configured bucket.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region(cfg)))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to load aws configuration", err)
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		access, secret := cfg.AccessKey, cfg.SecretKey
		awsCfg.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: access, SecretAccessKey: secret, Source: "sqlforge"}, nil
		})
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg))
		}
		o.UsePathStyle = cfg.PathStyle
	})

	d := newDriver(client, s3.NewPresignClient(client), cfg)
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func newDriver(client api, p presigner, cfg *filestore.Config) *Driver {
	return &Driver{client: client, presign: p, region: region(cfg), bucket: cfg.Bucket}
}

func region(cfg *filestore.Config) string {
	if cfg.Region == "" {
		return "us-east-1"
	}
	return cfg.Region
}

// endpointURL adds the scheme minio-style endpoints leave out.
func endpointURL(cfg *filestore.Config) string {
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

// --- filestore.Store implementation ---

// Ping issues HeadBucket on the configured bucket. NotFound still means the
// service answered.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)})
	if err == nil {
		return nil
	}
	if e := mapError(err, "ping failed"); e.Kind != errs.ErrKindNotFound {
		return e
	}
	return nil
}

// Close is a no-op; the SDK client pools its own HTTP connections.
func (d *Driver) Close() error {
	return nil
}

// EnsureBucket creates bucket unless HeadBucket finds it.
func (d *Driver) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if e := mapError(err, "failed to check bucket"); e.Kind != errs.ErrKindNotFound {
		return e
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if d.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(d.region),
		}
	}
	if _, err := d.client.CreateBucket(ctx, in); err != nil {
		if isCode(err, "BucketAlreadyOwnedByYou") {
			return nil
		}
		return mapError(err, "failed to create bucket")
	}
	return nil
}

// PutObject uploads size bytes from r to key inside bucket.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	out, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  contentType,
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: time.Now().UTC(),
	}, nil
}

// ListObjects pages through ListObjectsV2 until opts.Limit is reached.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if opts.Prefix != "" {
		in.Prefix = aws.String(opts.Prefix)
	}
	if !opts.Recursive {
		in.Delimiter = aws.String("/")
	}

	var results []filestore.ObjectInfo
	full := func() bool { return opts.Limit > 0 && len(results) >= opts.Limit }

	pages := s3.NewListObjectsV2Paginator(d.client, in)
	for pages.HasMorePages() && !full() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}

		for _, p := range page.CommonPrefixes {
			if full() {
				break
			}
			results = append(results, filestore.ObjectInfo{Key: aws.ToString(p.Prefix), Size: -1, IsDir: true})
		}
		for _, obj := range page.Contents {
			if full() {
				break
			}
			results = append(results, filestore.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return results, nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	return &object{
		ReadCloser: out.Body,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         sizeOf(out.ContentLength),
			ContentType:  aws.ToString(out.ContentType),
			ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
			LastModified: aws.ToTime(out.LastModified),
		},
	}, nil
}

// StatObject returns metadata for the object at key via HeadObject.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         sizeOf(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// PresignGetURL returns a time-limited public download URL for the object.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return req.URL, nil
}

// --- internal types ---

func sizeOf(n *int64) int64 {
	if n == nil {
		return -1
	}
	return *n
}

// object wraps a GetObject body and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

var _ filestore.Store = (*Driver)(nil)
