package asset

import (
	"context"
	"fmt"

	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/storage"
	"github.com/abduss/assetgate/internal/transcode"
	"go.uber.org/zap"
)

// Open builds the ingestion service for the configured backend. A backend without
// credentials still yields a service; it refuses uploads until configured.
func Open(ctx context.Context, cfg config.Config) (*Service, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	names, err := naming.New(cfg.Store.Naming)
	if err != nil {
		return nil, err
	}
	tc := transcode.New(cfg.Upload.Quality, cfg.Upload.MaxDimension)
	return NewService(store, tc, names, OptionsFromConfig(cfg)), nil
}

func openStore(ctx context.Context, cfg config.Config) (contentStore, error) {
	switch cfg.Store.Backend {
	case config.BackendGitHub:
		client, err := storage.NewGitHubClient(cfg.GitHub)
		if err != nil {
			return nil, err
		}
		return NewGitHubStore(client, cfg.GitHub, cfg.Committer), nil

	case config.BackendMinIO:
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		store := NewMinIOStore(client, cfg.MinIO)
		if store.Ready() == nil {
			if err := storage.EnsureBucket(ctx, client, cfg.MinIO.Bucket, cfg.MinIO.Region, cfg.Store.ImagePrefix, cfg.Store.BackupPrefix); err != nil {
				return nil, fmt.Errorf("ensure bucket: %w", err)
			}
		} else {
			zap.L().Warn("minio credentials missing, skipping bucket setup", zap.String("bucket", cfg.MinIO.Bucket))
		}
		return store, nil

	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
