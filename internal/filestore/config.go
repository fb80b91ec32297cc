package filestore

import (
	"strings"

	"github.com/koustreak/greeny/internal/errs"
)

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings for connecting to the transcript bucket.
type Config struct {
	Provider Provider

	// Endpoint is host:port of the server, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is only needed by region-aware backends such as AWS S3.
	Region string

	// Bucket receives archived transcripts. It is created on startup when
	// missing.
	Bucket string
}

// DefaultConfig returns a local MinIO config using the "greeny" bucket.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "greeny",
	}
}

// Validate checks that the config names a reachable bucket.
func (c *Config) Validate() error {
	if c.Provider != "" && c.Provider != ProviderMinIO {
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported filestore provider %q", c.Provider)
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return errs.New(errs.ErrKindInvalidInput, "filestore endpoint is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errs.New(errs.ErrKindInvalidInput, "filestore bucket is required")
	}
	return nil
}
