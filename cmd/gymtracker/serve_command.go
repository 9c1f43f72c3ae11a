package main

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	http_ "github.com/mkrupp/gymtracker/internal/infra/transport/http"
	"github.com/mkrupp/gymtracker/internal/svc/mediaref"
	"github.com/mkrupp/gymtracker/internal/svc/updatesvc"
	"github.com/mkrupp/gymtracker/internal/svc/workoutsvc"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workout API and the media reference websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}

			if addr != "" {
				cfg.HTTP.ServerAddr = addr
			}

			return ctx.withServices(cmd, func(svcs *services) error {
				return serve(cmd.Context(), cfg, svcs)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides GYMTRACKER_HTTP_SERVER_ADDR")

	return cmd
}

// newRouter mounts the workout API under /api and the reference endpoints
// at the root.
func newRouter(cfg *Config, svcs *services, checker *updatesvc.Checker) (chi.Router, *mediaref.Manager) {
	manager := mediaref.NewManager(svcs.thumbs, mediaref.NewRegistry(mediaref.DefaultPrefix))

	router := chi.NewRouter()
	router.Mount("/api", workoutsvc.NewHTTPTransport(svcs.workout, svcs.thumbs, checker, cfg.WorkoutHTTP).Routes())
	router.Mount("/", mediaref.NewHTTPTransport(manager, cfg.MediaRef).Routes())

	return router, manager
}

func serve(ctx context.Context, cfg *Config, svcs *services) (err error) {
	log := logging.GetLogger("cmd.gymtracker.serve")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	checker := updatesvc.NewChecker(cfg.Update, nil)
	router, manager := newRouter(cfg, svcs, checker)

	defer func() {
		manager.Wait()

		if err != nil {
			log.ErrorContext(ctx, "serve failed", "error", err)
		} else {
			log.InfoContext(ctx, "shutdown", "live_references", manager.Registry().Live())
		}
	}()

	if cfg.Update.Interval > 0 {
		go checker.Poll(ctx, cfg.Update.Interval, func(status domain.UpdateStatus) {
			if status.Available {
				log.InfoContext(ctx, "update available", "latest", status.Latest, "download", status.DownloadURL)
			}
		})
	}

	if err := http_.ListenAndServe(ctx, router, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
