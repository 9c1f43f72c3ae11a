package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrupp/gymtracker/internal/infra/config"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	http_ "github.com/mkrupp/gymtracker/internal/infra/transport/http"
	"github.com/mkrupp/gymtracker/internal/repo/blob"
	"github.com/mkrupp/gymtracker/internal/repo/workout"
	"github.com/mkrupp/gymtracker/internal/svc/mediaref"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
	"github.com/mkrupp/gymtracker/internal/svc/thumbsvc"
	"github.com/mkrupp/gymtracker/internal/svc/updatesvc"
	"github.com/mkrupp/gymtracker/internal/svc/workoutsvc"
)

const (
	appName = "gymtracker"

	backendFilesystem = "filesystem"
	backendMinIO      = "minio"
)

// StorageConfig selects where media payloads are kept.
type StorageConfig struct {
	// Backend is "filesystem" or "minio"
	Backend string `env:"BACKEND" default:"filesystem"`
}

// Config is the complete process configuration. Every variable is read with
// the GYMTRACKER_ prefix, e.g. GYMTRACKER_HTTP_SERVER_ADDR.
type Config struct {
	config.EnvConfig

	Log         logging.LoggerConfig                  `envPrefix:"LOG_"`
	HTTP        http_.HTTPTransportConfig             `envPrefix:"HTTP_"`
	Storage     StorageConfig                         `envPrefix:"STORAGE_"`
	Blob        blob.FileSystemBlobRepositoryConfig   `envPrefix:"BLOB_"`
	MinIO       blob.MinIOBlobRepositoryConfig        `envPrefix:"MINIO_"`
	Media       mediasvc.MediaConfig                  `envPrefix:"MEDIA_"`
	Thumb       thumbsvc.ThumbConfig                  `envPrefix:"THUMB_"`
	MediaRef    mediaref.HTTPTransportConfig          `envPrefix:"MEDIAREF_"`
	Records     workout.SQLiteWorkoutRepositoryConfig `envPrefix:"DB_"`
	Workout     workoutsvc.WorkoutConfig              `envPrefix:"WORKOUT_"`
	WorkoutHTTP workoutsvc.HTTPTransportConfig        `envPrefix:"WORKOUT_HTTP_"`
	Update      updatesvc.UpdateConfig                `envPrefix:"UPDATE_"`
}

func loadConfig(ctx context.Context) (*Config, error) {
	var cfg Config

	if err := config.Parse(ctx, &cfg, strings.ToUpper(appName)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	return &cfg, nil
}

// blobFactory returns the repository factory for the configured backend.
func (cfg *Config) blobFactory() (blob.RepositoryFactory, error) {
	switch cfg.Storage.Backend {
	case backendFilesystem, "":
		return blob.FileSystemBlobRepositoryFactory(cfg.Blob), nil
	case backendMinIO:
		client, err := blob.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("new minio client: %w", err)
		}

		return blob.MinIOBlobRepositoryFactory(client, cfg.MinIO.Bucket), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Backend)
	}
}
