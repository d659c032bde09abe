package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shineum/slicemail/internal/config"
	"github.com/shineum/slicemail/internal/email"
	"github.com/shineum/slicemail/internal/provider"
	"github.com/shineum/slicemail/internal/provider/file"
	"github.com/shineum/slicemail/internal/provider/graph"
	"github.com/shineum/slicemail/internal/provider/ses"
	"github.com/shineum/slicemail/internal/provider/stdout"
	"github.com/shineum/slicemail/internal/uploader"
	"github.com/shineum/slicemail/internal/uploader/cloudinary"
	"github.com/shineum/slicemail/internal/uploader/s3"
)

// errNoUploader is reported when generation is attempted without an image
// hosting backend.
var errNoUploader = errors.New("no uploader configured: set CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET, or S3_BUCKET")

// unconfiguredUploader fails every upload. It lets the server start and
// answer health checks before credentials are in place.
type unconfiguredUploader struct{}

func (unconfiguredUploader) Upload(_ context.Context, img email.Image) (email.RemoteImage, error) {
	return email.RemoteImage{}, &uploader.UploadError{Slot: img.Slot, Provider: "none", Err: errNoUploader}
}

func (unconfiguredUploader) Name() string { return "none" }

// selectUploader chooses the image hosting backend based on configuration.
// An explicit UPLOADER wins; otherwise Cloudinary is preferred over S3.
// Missing credentials only produce a warning.
func selectUploader(ctx context.Context, cfg *config.Config) (uploader.Uploader, error) {
	switch cfg.Uploader {
	case "cloudinary":
		if !cfg.CloudinaryConfigured() {
			return nil, errors.New("cloudinary uploader selected but CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET are required")
		}
		return newCloudinary(cfg)

	case "s3":
		if !cfg.S3Configured() {
			return nil, errors.New("s3 uploader selected but S3_BUCKET is required")
		}
		return newS3(ctx, cfg)

	case "":
		if cfg.CloudinaryConfigured() {
			return newCloudinary(cfg)
		}
		if cfg.S3Configured() {
			return newS3(ctx, cfg)
		}
		slog.Warn("no uploader configured, generation will fail until credentials are set",
			"error", errNoUploader,
		)
		return unconfiguredUploader{}, nil

	default:
		return nil, fmt.Errorf("unknown uploader %q", cfg.Uploader)
	}
}

func newCloudinary(cfg *config.Config) (uploader.Uploader, error) {
	slog.Info("using Cloudinary uploader", "cloud_name", cfg.Cloudinary.CloudName)
	u, err := cloudinary.New(cloudinary.Config{
		CloudName:    cfg.Cloudinary.CloudName,
		UploadPreset: cfg.Cloudinary.UploadPreset,
		APIBase:      cfg.Cloudinary.APIBase,
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func newS3(ctx context.Context, cfg *config.Config) (uploader.Uploader, error) {
	slog.Info("using S3 uploader",
		"bucket", cfg.S3.Bucket,
		"endpoint", cfg.S3.Endpoint,
	)
	u, err := s3.New(ctx, s3.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
		PublicURL:       cfg.S3.PublicURL,
		Prefix:          cfg.S3.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// selectProvider chooses the delivery backend based on configuration.
// If PROVIDER is set, it takes precedence. Otherwise it falls back to
// auto-detection: Graph if configured, else SES, else stdout.
func selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("SES provider selected but SES_REGION and SES_SENDER are required")
		}
		return newSES(ctx, cfg)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
		}
		return newGraph(cfg), nil

	case "file":
		slog.Info("using file provider", "dir", cfg.Output.Dir)
		return file.New(cfg.Output.Dir), nil

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New(), nil

	case "":
		if cfg.GraphConfigured() {
			return newGraph(cfg), nil
		}
		if cfg.SESConfigured() {
			return newSES(ctx, cfg)
		}
		slog.Info("no provider configured, using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newSES(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	slog.Info("using AWS SES provider",
		"region", cfg.SES.Region,
		"sender", cfg.SES.Sender,
	)
	p, err := ses.New(ctx, ses.SESProviderConfig{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
		Sender:          cfg.SES.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES provider: %w", err)
	}
	return p, nil
}

func newGraph(cfg *config.Config) provider.Provider {
	slog.Info("using Microsoft Graph provider",
		"sender", cfg.Graph.Sender,
	)
	return graph.New(graph.GraphProviderConfig{
		TenantID:        cfg.Graph.TenantID,
		ClientID:        cfg.Graph.ClientID,
		ClientSecret:    cfg.Graph.ClientSecret,
		Sender:          cfg.Graph.Sender,
		SaveToSentItems: cfg.Graph.SaveToSentItems,
	})
}
