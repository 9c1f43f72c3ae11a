package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mkrupp/gymtracker/internal/infra/logging"
	"github.com/mkrupp/gymtracker/internal/repo/workout"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
	"github.com/mkrupp/gymtracker/internal/svc/thumbsvc"
	"github.com/mkrupp/gymtracker/internal/svc/workoutsvc"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

type commandContext struct {
	jsonFlag    *bool
	verboseFlag *bool

	configOnce sync.Once
	config     *Config
	configErr  error
}

func newCommandContext(jsonFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		jsonFlag:    jsonFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig(ctx context.Context) (*Config, error) {
	c.configOnce.Do(func() {
		cfg, err := loadConfig(ctx)
		if err != nil {
			c.configErr = err

			return
		}

		if c.verboseFlag != nil && *c.verboseFlag {
			cfg.Log.Level = "debug"
		}

		logging.Configure(ctx, cfg.Log, appName)
		c.config = cfg
	})

	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// services is everything a command may need, opened from one Config.
type services struct {
	repo    workout.Repository
	media   *mediasvc.Handle
	thumbs  *thumbsvc.BlobThumbService
	workout *workoutsvc.Service
}

func openServices(ctx context.Context, cfg *Config) (svcs *services, err error) {
	factory, err := cfg.blobFactory()
	if err != nil {
		return nil, err
	}

	handle := mediasvc.NewHandle(factory, cfg.Media)

	thumbs, err := thumbsvc.NewBlobThumbService(ctx, factory, handle, cfg.Thumb)
	if err != nil {
		return nil, fmt.Errorf("new thumb service: %w", err)
	}

	repo, err := workout.SQLiteWorkoutRepositoryFactory(cfg.Records)()
	if err != nil {
		return nil, fmt.Errorf("open workout repository: %w", err)
	}

	defer func() {
		if err != nil {
			_ = repo.Close()
		}
	}()

	// Deletes go through the thumbnail service so cached variants go too.
	workoutSvc, err := workoutsvc.NewService(repo, thumbs, cfg.Workout)
	if err != nil {
		return nil, fmt.Errorf("new workout service: %w", err)
	}

	return &services{
		repo:    repo,
		media:   handle,
		thumbs:  thumbs,
		workout: workoutSvc,
	}, nil
}

func (s *services) Close() error {
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close workout repository: %w", err)
	}

	return nil
}

// withServices opens the services for the duration of fn.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(*services) error) (err error) {
	cfg, err := c.ensureConfig(cmd.Context())
	if err != nil {
		return err
	}

	svcs, err := openServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, svcs.Close())
	}()

	return fn(svcs)
}
