// Package s3 implements an Uploader that stores images in an S3 bucket (or an
// S3-compatible service such as R2 or MinIO) and links to their public URL.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/shineum/slicemail/internal/email"
	"github.com/shineum/slicemail/internal/uploader"
)

// Config holds the configuration for creating an Uploader.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint is set for S3-compatible services. Path-style addressing is
	// used whenever it is set.
	Endpoint string

	// PublicURL is the base URL objects are served from (bucket website, CDN).
	PublicURL string

	// Prefix is prepended to every object key.
	Prefix string
}

// PutObjectAPI is the interface for the S3 PutObject operation.
// Used for testing with mock implementations.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores images as public objects.
type Uploader struct {
	client    PutObjectAPI
	bucket    string
	prefix    string
	publicURL string
	now       func() time.Time
}

// New creates a new Uploader with the given configuration.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if cfg.Region == "" {
		cfg.Region = awsCfg.Region
	}

	return NewWithClient(cfg, client), nil
}

// NewWithClient creates an Uploader with a custom client, used for testing.
func NewWithClient(cfg Config, client PutObjectAPI) *Uploader {
	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: publicBase(cfg),
		now:       time.Now,
	}
}

// Name returns the uploader name.
func (u *Uploader) Name() string {
	return "s3"
}

// Upload stores the image under a fresh key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, img email.Image) (email.RemoteImage, error) {
	mtype := mimetype.Detect(img.Data)
	key := u.objectKey(img.Slot, mtype.Extension())

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(mtype.String()),
		ContentLength: aws.Int64(int64(len(img.Data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return email.RemoteImage{}, &uploader.UploadError{
			Slot:     img.Slot,
			Provider: u.Name(),
			Err:      fmt.Errorf("failed to put object %s: %w", key, err),
		}
	}

	link := u.publicURL + "/" + key
	slog.Debug("image uploaded",
		"provider", u.Name(),
		"slot", img.Slot,
		"key", key,
	)

	return email.RemoteImage{Slot: img.Slot, URL: link}, nil
}

// objectKey returns prefix/slot-<unix nanos><ext>.
func (u *Uploader) objectKey(slot email.Slot, ext string) string {
	name := fmt.Sprintf("%s-%d%s", slot, u.now().UnixNano(), ext)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// publicBase returns the URL objects are reachable at, without trailing slash.
func publicBase(cfg Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}
