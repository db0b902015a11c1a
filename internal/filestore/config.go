package filestore

import (
	"time"

	"github.com/koustreak/sqlforge/internal/errs"
)

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
	ProviderS3    Provider = "s3"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	// Provider is the storage backend (ProviderMinIO or ProviderS3).
	Provider Provider

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO. Optional for S3, where it
	// points at an S3-compatible service instead of AWS.
	Endpoint string

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string

	// Bucket receives published scripts.
	Bucket string

	// Prefix is prepended to every published key ("exports" when empty).
	Prefix string

	// PresignTTL is the lifetime of download URLs returned by Publish.
	PresignTTL time.Duration

	// PathStyle forces path-style addressing (bucket in the path, not the host).
	PathStyle bool
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:   ProviderMinIO,
		Endpoint:   endpoint,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		UseSSL:     false,
		Bucket:     "sqlforge",
		Prefix:     "exports",
		PresignTTL: 24 * time.Hour,
	}
}

// Validate rejects configs no provider can work with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMinIO:
		if c.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "filestore: minio requires an endpoint")
		}
	case ProviderS3:
		if c.Region == "" && c.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "filestore: s3 requires a region or an endpoint")
		}
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "filestore: unsupported provider %q", c.Provider)
	}
	if c.Bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "filestore: bucket is required")
	}
	return nil
}
